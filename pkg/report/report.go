// Package report 合规报告生成
// 报告JSON落盘到 data/compliance_reports/，命名 <清洗后的org-id>_<epoch-ms>.<ext>
// PDF渲染通过能力接口接入，默认实现不产出PDF
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/aliciakaith/flowgrid/pkg/storage"
)

// DefaultDir 报告输出目录
const DefaultDir = "data/compliance_reports"

// unsafeChars org-id清洗：仅保留字母数字与连字符
var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9-]`)

// PDFRenderer PDF渲染能力接口
type PDFRenderer interface {
	Render(reportJSON []byte, outPath string) error
}

// ComplianceReport 报告内容
type ComplianceReport struct {
	OrgID        string             `json:"org_id"`
	GeneratedAt  time.Time          `json:"generated_at"`
	FlowCount    int                `json:"flow_count"`
	Integrations []*storage.Integration `json:"integrations"`
	TxSummary    *storage.TxSummary `json:"tx_summary"`
}

// Generator 报告生成器（对外导出）
type Generator struct {
	store    *storage.Store
	dir      string
	renderer PDFRenderer
}

// NewGenerator 创建生成器；renderer可为nil（只产出JSON）
func NewGenerator(store *storage.Store, dir string, renderer PDFRenderer) *Generator {
	if dir == "" {
		dir = DefaultDir
	}
	return &Generator{store: store, dir: dir, renderer: renderer}
}

// Generate 生成一份组织报告并落盘，返回JSON文件路径（对外导出）
func (g *Generator) Generate(ctx context.Context, orgID string) (string, error) {
	flows, err := g.store.Flows.ListByOrg(ctx, orgID)
	if err != nil {
		return "", err
	}
	integrations, err := g.store.Integrations.ListByOrg(ctx, orgID)
	if err != nil {
		return "", err
	}
	summary, err := g.store.TxEvents.SummaryByOrg(ctx, orgID, time.Now().UTC().AddDate(0, -1, 0))
	if err != nil {
		return "", err
	}

	rep := ComplianceReport{
		OrgID:        orgID,
		GeneratedAt:  time.Now().UTC(),
		FlowCount:    len(flows),
		Integrations: integrations,
		TxSummary:    summary,
	}

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化报告失败: %w", err)
	}

	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return "", fmt.Errorf("创建报告目录失败: %w", err)
	}

	base := fmt.Sprintf("%s_%d", sanitizeOrgID(orgID), time.Now().UnixMilli())
	jsonPath := filepath.Join(g.dir, base+".json")
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return "", fmt.Errorf("写入报告失败: %w", err)
	}

	if g.renderer != nil {
		pdfPath := filepath.Join(g.dir, base+".pdf")
		if err := g.renderer.Render(data, pdfPath); err != nil {
			return "", fmt.Errorf("渲染PDF失败: %w", err)
		}
	}

	return jsonPath, nil
}

// sanitizeOrgID 清洗org-id作为文件名片段
func sanitizeOrgID(orgID string) string {
	return unsafeChars.ReplaceAllString(orgID, "")
}
