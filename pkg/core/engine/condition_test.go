package engine

import "testing"

func TestEvalCondition_Literals(t *testing.T) {
	out := evalCondition("true", nil)
	if out["passed"] != true {
		t.Fatalf("字面量true应通过: %v", out)
	}

	out = evalCondition("false", map[string]any{"x": 1})
	if out["passed"] != false {
		t.Fatalf("字面量false不应通过: %v", out)
	}
}

func TestEvalCondition_NonEmptyHeuristic(t *testing.T) {
	out := evalCondition("payload.amount > 0", map[string]any{"prev": map[string]any{"amount": 5}})
	if out["passed"] != true {
		t.Fatalf("输入非空时应通过: %v", out)
	}

	out = evalCondition("anything", map[string]any{})
	if out["passed"] != false {
		t.Fatalf("输入为空时不应通过: %v", out)
	}
}

func TestEvalCondition_Total(t *testing.T) {
	// 求值必须全函数：任意输入都不panic
	weird := []string{"", "}{", "true || false", "\x00"}
	for _, cond := range weird {
		out := evalCondition(cond, nil)
		if _, ok := out["passed"]; !ok {
			t.Fatalf("条件 %q 应返回passed字段", cond)
		}
		if out["condition"] != cond {
			t.Fatalf("输出应回传原始条件: %v", out)
		}
	}
}
