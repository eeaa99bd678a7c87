package dag

import (
	"testing"

	"github.com/aliciakaith/flowgrid/pkg/apperr"
)

func TestBuildPlan_Linear(t *testing.T) {
	plan, err := BuildPlan(
		[]string{"start", "http", "end"},
		[]Edge{{From: "start", To: "http"}, {From: "http", To: "end"}},
	)
	if err != nil {
		t.Fatalf("构建计划失败: %v", err)
	}
	if len(plan) != 3 {
		t.Fatalf("计划长度应为3，实际 %d", len(plan))
	}
	expected := []string{"start", "http", "end"}
	for i, id := range expected {
		if plan[i] != id {
			t.Fatalf("计划顺序错误: 位置%d 期望%s 实际%s", i, id, plan[i])
		}
	}
}

func TestBuildPlan_InsertionOrderTies(t *testing.T) {
	// a、b、c 均无入度：按声明顺序出队
	plan, err := BuildPlan(
		[]string{"c", "a", "b", "sink"},
		[]Edge{{From: "c", To: "sink"}, {From: "a", To: "sink"}, {From: "b", To: "sink"}},
	)
	if err != nil {
		t.Fatalf("构建计划失败: %v", err)
	}
	if plan[0] != "c" || plan[1] != "a" || plan[2] != "b" {
		t.Fatalf("零入度节点应按声明顺序: %v", plan)
	}
	if plan[3] != "sink" {
		t.Fatalf("sink应最后执行: %v", plan)
	}
}

func TestBuildPlan_DiamondLength(t *testing.T) {
	// 无环图的计划长度恒等于节点数
	plan, err := BuildPlan(
		[]string{"a", "b", "c", "d"},
		[]Edge{{From: "a", To: "b"}, {From: "a", To: "c"}, {From: "b", To: "d"}, {From: "c", To: "d"}},
	)
	if err != nil {
		t.Fatalf("构建计划失败: %v", err)
	}
	if len(plan) != 4 {
		t.Fatalf("计划长度应等于节点数4，实际 %d", len(plan))
	}
}

func TestBuildPlan_Cycle(t *testing.T) {
	_, err := BuildPlan(
		[]string{"a", "b"},
		[]Edge{{From: "a", To: "b"}, {From: "b", To: "a"}},
	)
	if err == nil {
		t.Fatal("环应当报错")
	}
	if apperr.KindOf(err) != apperr.InvalidGraph {
		t.Fatalf("错误Kind应为InvalidGraph，实际 %v", apperr.KindOf(err))
	}
}

func TestValidate_CycleDetected(t *testing.T) {
	err := Validate(
		[]string{"a", "b", "c"},
		[]Edge{{From: "a", To: "b"}, {From: "b", To: "c"}, {From: "c", To: "a"}},
	)
	if err == nil {
		t.Fatal("三节点环应当被拒绝")
	}
}

func TestValidate_DisconnectedOK(t *testing.T) {
	// 不连通但无环的图是合法的
	if err := Validate([]string{"a", "b"}, nil); err != nil {
		t.Fatalf("孤立节点不应报错: %v", err)
	}
}

func TestDetectCycleDFS_SelfLoop(t *testing.T) {
	hasCycle, _ := detectCycleDFS(map[string][]string{"a": {"a"}})
	if !hasCycle {
		t.Fatal("自环应当被检出")
	}
}
