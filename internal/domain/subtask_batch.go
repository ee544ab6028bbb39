package domain

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// MaxBatchSubtasks 限制一次批量创建展开后的子任务数量。
const MaxBatchSubtasks = 1000

// ErrBatchTooLarge 表示批量输入展开后超过 MaxBatchSubtasks。
var ErrBatchTooLarge = errors.New("subtask batch expands beyond limit")

var rangePattern = regexp.MustCompile(`^(\d+)~(\d+)$`)

// SubtaskDraft 是解析后待创建的子任务。
type SubtaskDraft struct {
	Title string
	Order int
}

// ParseSubtaskBatch 解析批量创建的输入。
// "3~8" 展开为标题 "3".."8" 的六个子任务；起点大于终点时不产生任何子任务；
// 其他字符串 (去掉首尾空白后) 作为一个字面标题。空白输入被忽略。
// Order 从 1 开始，在整个批次内按输入顺序递增。
func ParseSubtaskBatch(inputs []string) ([]SubtaskDraft, error) {
	drafts := make([]SubtaskDraft, 0, len(inputs))
	order := 1
	for _, raw := range inputs {
		in := strings.TrimSpace(raw)
		if in == "" {
			continue
		}

		m := rangePattern.FindStringSubmatch(in)
		if m == nil {
			if len(drafts) >= MaxBatchSubtasks {
				return nil, ErrBatchTooLarge
			}
			drafts = append(drafts, SubtaskDraft{Title: in, Order: order})
			order++
			continue
		}

		start, errStart := strconv.Atoi(m[1])
		end, errEnd := strconv.Atoi(m[2])
		if errStart != nil || errEnd != nil {
			// 数字超出 int 范围
			return nil, ErrBatchTooLarge
		}
		if start > end {
			continue
		}
		// end-start 不会溢出，end-start+1 在 end 为 MaxInt 时会
		if end-start >= MaxBatchSubtasks-len(drafts) {
			return nil, ErrBatchTooLarge
		}
		for i := start; i <= end; i++ {
			drafts = append(drafts, SubtaskDraft{Title: strconv.Itoa(i), Order: order})
			order++
		}
	}
	return drafts, nil
}
