package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"walletlink/internal/ledger"
	"walletlink/internal/models"
	"walletlink/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// ExportHandler 负责账本导出接口（管理端审计用）
type ExportHandler struct {
	Ledger *ledger.Ledger
}

func NewExportHandler(lg *ledger.Ledger) *ExportHandler {
	return &ExportHandler{Ledger: lg}
}

// 导出上限，避免一次拉全表拖垮进程
const exportLimit = 10000

var exportHeader = []string{
	"transaction_id", "link_id", "from", "to",
	"value_wei", "value_eth", "status", "tx_hash",
	"network", "note", "created_at", "resolved_at",
}

func exportRow(t *models.TransactionRecord) []string {
	resolvedAt := ""
	if t.ResolvedAt != nil {
		resolvedAt = t.ResolvedAt.Format(time.RFC3339)
	}
	return []string{
		t.TransactionID,
		t.LinkID,
		t.FromAddress,
		t.ToAddress,
		t.Value,
		t.ValueDisplay,
		t.Status,
		t.TxHash,
		t.Network,
		t.Note,
		t.CreatedAt.Format(time.RFC3339),
		resolvedAt,
	}
}

func (h *ExportHandler) fetch(c *gin.Context) ([]models.TransactionRecord, bool) {
	filter := ledger.Filter{
		LinkID: c.Query("link_id"),
		Status: c.Query("status"),
	}
	// 全量读取，不走分页接口（分页接口会把 pageSize 钳到 100 以内）
	records, err := h.Ledger.ListAll(filter, exportLimit)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询失败")
		return nil, false
	}
	return records, true
}

// ExportCSV 导出交易账本为 CSV
func (h *ExportHandler) ExportCSV(c *gin.Context) {
	records, ok := h.fetch(c)
	if !ok {
		return
	}

	// 设置响应头
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"transactions_%s.csv\"",
		time.Now().Format("20060102")))

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	// UTF-8 BOM（让 Excel 正确识别编码）
	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	writer.Write(exportHeader)
	for i := range records {
		writer.Write(exportRow(&records[i]))
	}
}

// ExportXLSX 导出交易账本为 XLSX
func (h *ExportHandler) ExportXLSX(c *gin.Context) {
	records, ok := h.fetch(c)
	if !ok {
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Transactions"
	index, err := f.NewSheet(sheet)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "生成表格失败")
		return
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	for col, title := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(sheet, cell, title)
	}
	for i := range records {
		row := exportRow(&records[i])
		for col, v := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"transactions_%s.xlsx\"",
		time.Now().Format("20060102")))

	if err := f.Write(c.Writer); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "导出失败")
		return
	}
}
