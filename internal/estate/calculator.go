package estate

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/domain"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/apperr"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/config"
)

// Error codes of the calculator that are answered to the user.
const (
	codeMetroStationNotFound       = "metro_station_not_found"
	codeTransactionDictSumNotEqual = "transaction_dict_sum_not_equal_100"
)

// File is a generated attachment.
type File struct {
	Name string
	Data []byte
}

// FinanceModel is the calculator's answer.
type FinanceModel struct {
	Text        string
	Spreadsheet *File
	PDF         *File
}

// Calculator builds a finance model from collected parameters.
type Calculator interface {
	Calculate(ctx context.Context, params map[string]any) (FinanceModel, error)
}

// CalculatorClient calls the finance-model calculator service.
type CalculatorClient struct {
	base baseClient
}

var _ Calculator = (*CalculatorClient)(nil)

// NewCalculatorClient creates the calculator client.
func NewCalculatorClient(cfg config.EstateConfig) *CalculatorClient {
	return &CalculatorClient{base: newBaseClient("finance calculator", cfg.GetCalculatorServiceURL(), cfg)}
}

type calculateRequest struct {
	Params map[string]any `json:"params"`
}

type calculateResponse struct {
	Text     string `json:"text"`
	XLSXName string `json:"xlsx_name"`
	XLSX     string `json:"xlsx_file"`
	PDFName  string `json:"pdf_name"`
	PDF      string `json:"pdf_file"`
}

// Calculate returns the finance model. Known calculator error codes map to user-facing domain errors.
func (c *CalculatorClient) Calculate(ctx context.Context, params map[string]any) (FinanceModel, error) {
	var resp calculateResponse
	if err := c.base.postJSON(ctx, "/finance-model/calc", calculateRequest{Params: params}, &resp); err != nil {
		var se *statusError
		if errors.As(err, &se) {
			switch se.Code {
			case codeMetroStationNotFound:
				return FinanceModel{}, domain.ErrMetroStationNotFound
			case codeTransactionDictSumNotEqual:
				return FinanceModel{}, domain.ErrTransactionDictSumNotEqual100
			}
		}
		return FinanceModel{}, apperr.External("finance model calculation", err)
	}

	model := FinanceModel{Text: resp.Text}
	var err error
	if model.Spreadsheet, err = decodeFile(resp.XLSXName, resp.XLSX, "finance_model.xlsx"); err != nil {
		return FinanceModel{}, apperr.External("decode spreadsheet", err)
	}
	if model.PDF, err = decodeFile(resp.PDFName, resp.PDF, "finance_model.pdf"); err != nil {
		return FinanceModel{}, apperr.External("decode pdf", err)
	}
	return model, nil
}

func decodeFile(name, encoded, fallback string) (*File, error) {
	if encoded == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fallback, err)
	}
	if name == "" {
		name = fallback
	}
	return &File{Name: name, Data: data}, nil
}
