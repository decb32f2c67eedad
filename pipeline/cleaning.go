package pipeline

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"studentoutcome/ml"
)

// CleaningRule 清洗规则
//
// Prepare sees the header produced by the previous rule and returns the
// header for the next one; an error from Prepare aborts cleaning. Apply sees
// one row and may rewrite it; an error rejects the row.
type CleaningRule interface {
	Name() string
	Prepare(columns []string) ([]string, error)
	Apply(row []string) ([]string, error)
}

// QualityIssue 质量问题
type QualityIssue struct {
	Type     string `json:"type"`
	Severity string `json:"severity"` // low, medium, high
	Message  string `json:"message"`
	Row      int    `json:"row"`
}

// CleaningStats 清洗统计
type CleaningStats struct {
	TotalProcessed int64            `json:"total_processed"`
	Passed         int64            `json:"passed"`
	Rejected       int64            `json:"rejected"`
	Corrected      int64            `json:"corrected"`
	Issues         map[string]int64 `json:"issues"`
	LastClean      time.Time        `json:"last_clean"`
}

// CleanerConfig 清洗配置
type CleanerConfig struct {
	Target         string
	DropColumns    []string
	DropDuplicates bool
}

// DataCleaner 数据清洗器
type DataCleaner struct {
	rules  []CleaningRule
	logger *zap.Logger

	issues     []QualityIssue
	issuesLock sync.RWMutex

	stats     CleaningStats
	statsLock sync.RWMutex
}

// NewDataCleaner 创建数据清洗器
func NewDataCleaner(cfg CleanerConfig, logger *zap.Logger) *DataCleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	cleaner := &DataCleaner{
		logger: logger,
		stats:  CleaningStats{Issues: make(map[string]int64)},
	}

	// 默认规则，顺序有意义
	cleaner.AddRule(NewRowWidthRule())
	if len(cfg.DropColumns) > 0 {
		cleaner.AddRule(NewDropColumnsRule(cfg.DropColumns...))
	}
	if cfg.Target != "" {
		cleaner.AddRule(NewRequireColumnRule(cfg.Target))
	}
	cleaner.AddRule(NewNormalizeRule())
	if cfg.Target != "" {
		cleaner.AddRule(NewMissingTargetRule(cfg.Target))
	}
	if cfg.DropDuplicates {
		cleaner.AddRule(NewDuplicateRowRule())
	}
	return cleaner
}

// AddRule 添加清洗规则
func (dc *DataCleaner) AddRule(rule CleaningRule) {
	dc.rules = append(dc.rules, rule)
	dc.logger.Debug("added cleaning rule", zap.String("rule", rule.Name()))
}

// Clean 清洗数据表。Row numbers in issues are 1-based data rows.
func (dc *DataCleaner) Clean(table *Table) (*Table, []QualityIssue, error) {
	columns := append([]string(nil), table.Columns...)
	for _, rule := range dc.rules {
		next, err := rule.Prepare(columns)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", rule.Name(), err)
		}
		columns = next
	}

	cleaned := &Table{Columns: columns, Source: table.Source}
	var issues []QualityIssue

	dc.statsLock.Lock()
	for i, original := range table.Rows {
		dc.stats.TotalProcessed++

		row := original
		corrected := false
		var rowIssue *QualityIssue
		for _, rule := range dc.rules {
			out, err := rule.Apply(row)
			if err != nil {
				rowIssue = &QualityIssue{
					Type:     rule.Name(),
					Severity: "high",
					Message:  err.Error(),
					Row:      i + 1,
				}
				dc.stats.Issues[rule.Name()]++
				break
			}
			if rewritten(row, out) {
				corrected = true
			}
			row = out
		}

		if rowIssue != nil {
			dc.stats.Rejected++
			issues = append(issues, *rowIssue)
			continue
		}
		if corrected {
			dc.stats.Corrected++
		}
		dc.stats.Passed++
		cleaned.Rows = append(cleaned.Rows, row)
	}
	dc.stats.LastClean = time.Now()
	dc.statsLock.Unlock()

	if !cleaned.validUTF8() {
		issues = append(issues, QualityIssue{
			Type:     "encoding",
			Severity: "low",
			Message:  "dataset contains invalid UTF-8; check the configured encoding",
		})
	}

	dc.issuesLock.Lock()
	dc.issues = append(dc.issues, issues...)
	dc.issuesLock.Unlock()

	dc.logger.Info("dataset cleaned",
		zap.String("source", table.Source),
		zap.Int("rows_in", len(table.Rows)),
		zap.Int("rows_out", len(cleaned.Rows)),
		zap.Int("issues", len(issues)),
	)
	return cleaned, issues, nil
}

// rewritten reports whether a rule changed cell values. Column projection
// changes the width and is not a correction.
func rewritten(before, after []string) bool {
	if len(before) != len(after) {
		return false
	}
	for i := range after {
		if before[i] != after[i] {
			return true
		}
	}
	return false
}

// GetStats 获取统计信息
func (dc *DataCleaner) GetStats() CleaningStats {
	dc.statsLock.RLock()
	defer dc.statsLock.RUnlock()

	stats := dc.stats
	stats.Issues = make(map[string]int64, len(dc.stats.Issues))
	for k, v := range dc.stats.Issues {
		stats.Issues[k] = v
	}
	return stats
}

// GetIssues 获取最近的问题列表
func (dc *DataCleaner) GetIssues(limit int) []QualityIssue {
	dc.issuesLock.RLock()
	defer dc.issuesLock.RUnlock()

	if limit <= 0 || limit > len(dc.issues) {
		limit = len(dc.issues)
	}

	issues := make([]QualityIssue, limit)
	copy(issues, dc.issues[len(dc.issues)-limit:])
	return issues
}

// ClearIssues 清空问题列表
func (dc *DataCleaner) ClearIssues() {
	dc.issuesLock.Lock()
	defer dc.issuesLock.Unlock()

	dc.issues = nil
}

// ============ 清洗规则实现 ============

// RowWidthRule 拒绝列数与表头不符的行
type RowWidthRule struct {
	width int
}

func NewRowWidthRule() *RowWidthRule { return &RowWidthRule{} }

func (r *RowWidthRule) Name() string { return "row_width" }

func (r *RowWidthRule) Prepare(columns []string) ([]string, error) {
	r.width = len(columns)
	return columns, nil
}

func (r *RowWidthRule) Apply(row []string) ([]string, error) {
	if len(row) != r.width {
		return nil, fmt.Errorf("row has %d fields, header has %d", len(row), r.width)
	}
	return row, nil
}

// DropColumnsRule 删除标识列等无关列。Absent columns are ignored.
type DropColumnsRule struct {
	drop map[string]struct{}
	keep []int
}

func NewDropColumnsRule(names ...string) *DropColumnsRule {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[strings.TrimSpace(n)] = struct{}{}
	}
	return &DropColumnsRule{drop: drop}
}

func (r *DropColumnsRule) Name() string { return "drop_columns" }

func (r *DropColumnsRule) Prepare(columns []string) ([]string, error) {
	r.keep = r.keep[:0]
	var out []string
	for i, c := range columns {
		if _, ok := r.drop[c]; ok {
			continue
		}
		r.keep = append(r.keep, i)
		out = append(out, c)
	}
	return out, nil
}

func (r *DropColumnsRule) Apply(row []string) ([]string, error) {
	out := make([]string, len(r.keep))
	for j, i := range r.keep {
		out[j] = row[i]
	}
	return out, nil
}

// RequireColumnRule 检查必需列存在
type RequireColumnRule struct {
	column string
}

func NewRequireColumnRule(column string) *RequireColumnRule {
	return &RequireColumnRule{column: column}
}

func (r *RequireColumnRule) Name() string { return "require_column" }

func (r *RequireColumnRule) Prepare(columns []string) ([]string, error) {
	for _, c := range columns {
		if c == r.column {
			return columns, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ml.ErrMissingTarget, r.column)
}

func (r *RequireColumnRule) Apply(row []string) ([]string, error) { return row, nil }

// NormalizeRule 统一单元格的空白与 Unicode 形式
type NormalizeRule struct{}

func NewNormalizeRule() *NormalizeRule { return &NormalizeRule{} }

func (r *NormalizeRule) Name() string { return "normalize" }

func (r *NormalizeRule) Prepare(columns []string) ([]string, error) { return columns, nil }

func (r *NormalizeRule) Apply(row []string) ([]string, error) {
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = ml.NormalizeCategory(cell)
	}
	return out, nil
}

// MissingTargetRule 拒绝指定列为空的行
type MissingTargetRule struct {
	column string
	index  int
}

func NewMissingTargetRule(column string) *MissingTargetRule {
	return &MissingTargetRule{column: column, index: -1}
}

func (r *MissingTargetRule) Name() string { return "missing_target" }

func (r *MissingTargetRule) Prepare(columns []string) ([]string, error) {
	r.index = -1
	for i, c := range columns {
		if c == r.column {
			r.index = i
			break
		}
	}
	return columns, nil
}

func (r *MissingTargetRule) Apply(row []string) ([]string, error) {
	if r.index >= 0 && strings.TrimSpace(row[r.index]) == "" {
		return nil, fmt.Errorf("column %q is empty", r.column)
	}
	return row, nil
}

// DuplicateRowRule 重复检测规则
type DuplicateRowRule struct {
	seen map[string]struct{}
	mu   sync.Mutex
}

func NewDuplicateRowRule() *DuplicateRowRule {
	return &DuplicateRowRule{seen: make(map[string]struct{})}
}

func (r *DuplicateRowRule) Name() string { return "duplicate_row" }

func (r *DuplicateRowRule) Prepare(columns []string) ([]string, error) {
	r.mu.Lock()
	r.seen = make(map[string]struct{})
	r.mu.Unlock()
	return columns, nil
}

func (r *DuplicateRowRule) Apply(row []string) ([]string, error) {
	key := strings.Join(row, "\x1f")

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.seen[key]; exists {
		return nil, fmt.Errorf("duplicate row")
	}
	r.seen[key] = struct{}{}
	return row, nil
}
