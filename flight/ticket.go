package flight

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/hugr-lab/manageql/catalog"
)

// TicketData is the decoded content of a Flight ticket. A ticket names
// either a table or a table function call.
type TicketData struct {
	Catalog string `json:"catalog,omitempty"`
	Schema  string `json:"schema"`

	Table string `json:"table,omitempty"`

	TableFunction  string `json:"table_function,omitempty"`
	FunctionParams []any  `json:"function_params,omitempty"`

	// Columns to read. Empty reads all columns.
	Columns []string `json:"columns,omitempty"`

	// Limit caps the number of rows streamed. Zero streams every row.
	Limit int64 `json:"limit,omitempty"`
}

// EncodeTicket creates a ticket scanning table.
func EncodeTicket(catalogName, schema, table string) ([]byte, error) {
	return (&TicketData{Catalog: catalogName, Schema: schema, Table: table}).Encode()
}

// Encode validates and encodes the ticket.
func (td *TicketData) Encode() ([]byte, error) {
	if err := td.validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(td)
	if err != nil {
		return nil, fmt.Errorf("encode ticket: %w", err)
	}
	return data, nil
}

// DecodeTicket parses a ticket created by Encode.
func DecodeTicket(ticket []byte) (*TicketData, error) {
	if len(ticket) == 0 {
		return nil, errors.New("ticket cannot be empty")
	}
	var td TicketData
	if err := json.Unmarshal(ticket, &td); err != nil {
		return nil, fmt.Errorf("decode ticket: %w", err)
	}
	if err := td.validate(); err != nil {
		return nil, err
	}
	return &td, nil
}

func (td *TicketData) validate() error {
	if td.Schema == "" {
		return errors.New("ticket has empty schema name")
	}
	switch {
	case td.Table == "" && td.TableFunction == "":
		return errors.New("ticket names neither a table nor a table function")
	case td.Table != "" && td.TableFunction != "":
		return errors.New("ticket names both a table and a table function")
	case td.Limit < 0:
		return errors.New("ticket has negative limit")
	}
	return nil
}

// ToScanOptions converts the ticket into scan options.
func (td *TicketData) ToScanOptions() *catalog.ScanOptions {
	return &catalog.ScanOptions{Columns: td.Columns, Limit: td.Limit}
}
