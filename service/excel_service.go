package service

import (
	"strconv"
	"time"

	"digimy/dto/model"

	"github.com/xuri/excelize/v2"
)

// GenerateExcelReport renders a transactions report workbook for operators.
func GenerateExcelReport(transactions []model.Transactions) ([]byte, error) {
	f := excelize.NewFile()
	sheetName := "Sheet1"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}

	headers := []string{"Code", "Gateway Order ID", "Buyer", "Amount", "Currency", "Status", "Payment Type", "Created", "Last Transition"}
	for i, header := range headers {
		cell := getColumnName(i+1) + "1"
		f.SetCellValue(sheetName, cell, header)
	}

	loc, _ := time.LoadLocation("Asia/Jakarta")

	for rowIndex, transaction := range transactions {
		row := rowIndex + 2
		f.SetCellValue(sheetName, "A"+strconv.Itoa(row), transaction.Code)
		f.SetCellValue(sheetName, "B"+strconv.Itoa(row), transaction.GatewayOrderID)
		f.SetCellValue(sheetName, "C"+strconv.Itoa(row), transaction.BuyerID)
		f.SetCellValue(sheetName, "D"+strconv.Itoa(row), transaction.Amount)
		f.SetCellValue(sheetName, "E"+strconv.Itoa(row), transaction.Currency)
		f.SetCellValue(sheetName, "F"+strconv.Itoa(row), transaction.Status)
		f.SetCellValue(sheetName, "G"+strconv.Itoa(row), transaction.PaymentType)
		f.SetCellValue(sheetName, "H"+strconv.Itoa(row), transaction.CreatedAt.In(loc).Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheetName, "I"+strconv.Itoa(row), transaction.LastTransitionAt.In(loc).Format("2006-01-02 15:04:05"))
	}

	f.SetActiveSheet(index)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func getColumnName(col int) string {
	name := ""
	for col > 0 {
		col--
		name = string(rune('A'+col%26)) + name
		col /= 26
	}
	return name
}
