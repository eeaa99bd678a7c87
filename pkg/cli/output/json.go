package output

import (
	"encoding/json"
	"fmt"
)

// JSON 输出带缩进的JSON
func JSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("JSON序列化失败: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
