package erp

import (
	"encoding/json"
	"strconv"
	"time"
)

const (
	EndpointCustomers     = "cliente"
	EndpointContracts     = "cliente_contrato"
	EndpointBills         = "fn_areceber"
	EndpointCustomerTypes = "tipo_cliente"
)

const erpDateLayout = "02/01/2006"

// GridFilter is one extra condition of a listing request.
type GridFilter struct {
	Table    string `json:"TB"`
	Operator string `json:"OP"`
	Value    string `json:"P"`
	Value2   string `json:"P2,omitempty"`
}

// Query describes a paginated listing.
type Query struct {
	QType     string
	Query     string
	Oper      string
	SortName  string
	SortOrder string
	Grid      []GridFilter
}

type listRequest struct {
	QType     string `json:"qtype"`
	Query     string `json:"query"`
	Oper      string `json:"oper"`
	Page      string `json:"page"`
	RP        string `json:"rp"`
	SortName  string `json:"sortname"`
	SortOrder string `json:"sortorder"`
	GridParam string `json:"grid_param,omitempty"`
}

type listResponse struct {
	Type      string  `json:"type"`
	Message   string  `json:"message"`
	Total     flexInt `json:"total"`
	Registros []Row   `json:"registros"`
}

func (q Query) request(page, pageSize int) (listRequest, error) {
	req := listRequest{
		QType:     q.QType,
		Query:     q.Query,
		Oper:      q.Oper,
		Page:      strconv.Itoa(page),
		RP:        strconv.Itoa(pageSize),
		SortName:  q.SortName,
		SortOrder: q.SortOrder,
	}
	if len(q.Grid) > 0 {
		grid, err := json.Marshal(q.Grid)
		if err != nil {
			return listRequest{}, err
		}
		req.GridParam = string(grid)
	}
	return req, nil
}

func customersQuery(excludedBranch string) Query {
	return Query{
		QType:     "cliente.id",
		Query:     "0",
		Oper:      ">",
		SortName:  "cliente.id",
		SortOrder: "asc",
		Grid: []GridFilter{
			{Table: "cliente.id", Operator: "!=", Value: "1"},
			{Table: "cliente.filial_id", Operator: "!=", Value: excludedBranch},
		},
	}
}

func contractsQuery(excludedBranch string) Query {
	return Query{
		QType:     "cliente_contrato.id",
		Query:     "0",
		Oper:      ">",
		SortName:  "cliente_contrato.id",
		SortOrder: "asc",
		Grid: []GridFilter{
			{Table: "cliente_contrato.id_filial", Operator: "!=", Value: excludedBranch},
		},
	}
}

// billsQuery lists released bills due strictly between start and end.
func billsQuery(excludedBranch string, start, end time.Time) Query {
	return Query{
		QType:     "fn_areceber.data_vencimento",
		Query:     end.Format(erpDateLayout),
		Oper:      "<",
		SortName:  "fn_areceber.data_vencimento",
		SortOrder: "asc",
		Grid: []GridFilter{
			{Table: "fn_areceber.liberado", Operator: "=", Value: "S"},
			{Table: "fn_areceber.filial_id", Operator: "!=", Value: excludedBranch},
			{Table: "fn_areceber.data_vencimento", Operator: ">", Value: start.Format(erpDateLayout)},
		},
	}
}

func customerTypesQuery() Query {
	return Query{
		QType:     "tipo_cliente.id",
		Query:     "1",
		Oper:      ">=",
		SortName:  "tipo_cliente.id",
		SortOrder: "desc",
	}
}
