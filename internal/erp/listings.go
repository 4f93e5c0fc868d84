package erp

import (
	"context"
	"time"

	"github.com/smallbiznis/delinquency/internal/delinquency/domain"
)

type Customer struct {
	Source domain.SourceCustomer
	Raw    []byte
}

type Contract struct {
	Source domain.SourceContract
	Raw    []byte
}

type Bill struct {
	Source domain.SourceBill
	Raw    []byte
}

type CustomerType struct {
	ID          string
	Description string
	Raw         []byte
}

func (c *Client) ListCustomers(ctx context.Context) ([]Customer, error) {
	rows, err := c.ListAll(ctx, EndpointCustomers, customersQuery(c.cfg.ExcludedBranch))
	if err != nil {
		return nil, err
	}
	out := make([]Customer, 0, len(rows))
	for _, row := range rows {
		out = append(out, Customer{Source: CustomerFromRow(row), Raw: row.Raw()})
	}
	return out, nil
}

func (c *Client) ListContracts(ctx context.Context) ([]Contract, error) {
	rows, err := c.ListAll(ctx, EndpointContracts, contractsQuery(c.cfg.ExcludedBranch))
	if err != nil {
		return nil, err
	}
	out := make([]Contract, 0, len(rows))
	for _, row := range rows {
		out = append(out, Contract{Source: ContractFromRow(row), Raw: row.Raw()})
	}
	return out, nil
}

// ListBills lists released bills with due date in (start, end]. The ERP
// filter is exclusive on both ends, so end is pushed one day forward.
func (c *Client) ListBills(ctx context.Context, start, end time.Time) ([]Bill, error) {
	rows, err := c.ListAll(ctx, EndpointBills, billsQuery(c.cfg.ExcludedBranch, start, end.AddDate(0, 0, 1)))
	if err != nil {
		return nil, err
	}
	out := make([]Bill, 0, len(rows))
	for _, row := range rows {
		out = append(out, Bill{Source: BillFromRow(row), Raw: row.Raw()})
	}
	return out, nil
}

func (c *Client) ListCustomerTypes(ctx context.Context) ([]CustomerType, error) {
	rows, err := c.ListAll(ctx, EndpointCustomerTypes, customerTypesQuery())
	if err != nil {
		return nil, err
	}
	out := make([]CustomerType, 0, len(rows))
	for _, row := range rows {
		out = append(out, CustomerType{
			ID:          row.String("id"),
			Description: row.String("tipo_cliente"),
			Raw:         row.Raw(),
		})
	}
	return out, nil
}

func CustomerFromRow(row Row) domain.SourceCustomer {
	return domain.SourceCustomer{
		ID:             row.String("id"),
		CompanyName:    row.String("razao"),
		TradeName:      row.String("fantasia"),
		Neighborhood:   row.String("bairro"),
		MobilePhone:    row.String("telefone_celular"),
		BusinessPhone:  row.String("telefone_comercial"),
		HomePhone:      row.String("telefone_residencial"),
		Phone:          row.String("fone"),
		CustomerTypeID: row.String("id_tipo_cliente"),
	}
}

func ContractFromRow(row Row) domain.SourceContract {
	return domain.SourceContract{
		ID:               row.String("id"),
		CustomerID:       row.String("id_cliente"),
		ConnectionStatus: row.String("status_internet"),
		TrustUnlock:      row.String("desbloqueio_confianca_ativo"),
	}
}

func BillFromRow(row Row) domain.SourceBill {
	return domain.SourceBill{
		ID:         row.String("id"),
		CustomerID: row.String("id_cliente"),
		IssueDate:  row.String("data_emissao"),
		DueDate:    row.String("data_vencimento"),
		PaidDate:   row.String("pagamento_data"),
		Amount:     row.String("valor"),
		Status:     row.String("status"),
	}
}
