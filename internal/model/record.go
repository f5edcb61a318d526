package model

import "time"

// Transaction status values accepted by the staging schema.
const (
	TxnCompleted = "COMPLETED"
	TxnPending   = "PENDING"
	TxnFailed    = "FAILED"
)

// Customer status values accepted by the staging schema.
const (
	CustomerActive   = "ACTIVE"
	CustomerInactive = "INACTIVE"
	CustomerPending  = "PENDING"
)

// Score bounds for satisfaction_score and nps_score.
const (
	MinScore = 0
	MaxScore = 10
)

// TransactionStatuses is the closed status set for transactions.
var TransactionStatuses = []string{TxnCompleted, TxnPending, TxnFailed}

// CustomerStatuses is the closed status set for customers.
var CustomerStatuses = []string{CustomerActive, CustomerInactive, CustomerPending}

// LastUpdatedColumn is stamped by the loader on every insert and update.
const LastUpdatedColumn = "last_updated"

// TransactionColumns is the staging column order for transactions.
var TransactionColumns = []string{
	"transaction_id", "transaction_date", "transaction_time",
	"branch_id", "customer_id", "product_id", "amount",
	"transaction_type_id", "employee_id", "channel_id",
	"status", "is_weekend", "is_holiday",
}

// CustomerColumns is the staging column order for customers.
var CustomerColumns = []string{
	"customer_id", "first_name", "last_name", "date_of_birth",
	"address", "city", "state", "zip_code", "email", "phone",
	"customer_segment_id", "acquisition_date", "last_interaction_date",
	"satisfaction_score", "nps_score", "status", "age", "customer_tenure_days",
}

// TransactionMutableColumns are overwritten when a transaction is re-loaded.
// Every other column keeps the value from the first load.
var TransactionMutableColumns = []string{"status"}

// CustomerMutableColumns are overwritten when a customer is re-loaded.
var CustomerMutableColumns = []string{
	"last_interaction_date", "satisfaction_score", "nps_score", "status",
}

// Transaction is one row of the transactions feed, keyed by TransactionID.
type Transaction struct {
	TransactionID     int64     `json:"transaction_id"`
	TransactionDate   time.Time `json:"transaction_date"`
	TransactionTime   string    `json:"transaction_time"` // HH:MM:SS
	BranchID          int64     `json:"branch_id"`
	CustomerID        int64     `json:"customer_id"`
	ProductID         int64     `json:"product_id"`
	Amount            float64   `json:"amount"`
	TransactionTypeID int       `json:"transaction_type_id"`
	EmployeeID        int64     `json:"employee_id"`
	ChannelID         int       `json:"channel_id"`
	Status            string    `json:"status"`

	// Derived by the transformer.
	IsWeekend bool `json:"is_weekend"`
	IsHoliday bool `json:"is_holiday"`
}

// Customer is one row of the customers feed, keyed by CustomerID.
type Customer struct {
	CustomerID          int64     `json:"customer_id"`
	FirstName           string    `json:"first_name"`
	LastName            string    `json:"last_name"`
	DateOfBirth         time.Time `json:"date_of_birth"`
	Address             string    `json:"address"`
	City                string    `json:"city"`
	State               string    `json:"state"`
	ZipCode             string    `json:"zip_code"`
	Email               *string   `json:"email,omitempty"`
	Phone               *string   `json:"phone,omitempty"`
	CustomerSegmentID   int       `json:"customer_segment_id"`
	AcquisitionDate     time.Time `json:"acquisition_date"`
	LastInteractionDate time.Time `json:"last_interaction_date"`
	SatisfactionScore   int       `json:"satisfaction_score"`
	NPSScore            int       `json:"nps_score"`
	Status              string    `json:"status"`

	// Derived by the transformer.
	Age        int `json:"age"`
	TenureDays int `json:"customer_tenure_days"`
}

// ValidStatus reports whether s is a member of set.
func ValidStatus(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// ValidScore reports whether a satisfaction or NPS score is in range.
func ValidScore(score int) bool {
	return score >= MinScore && score <= MaxScore
}

// Tables names the warehouse tables the loader writes and the checks read.
type Tables struct {
	Transactions string `yaml:"transactions" mapstructure:"transactions"`
	Customers    string `yaml:"customers" mapstructure:"customers"`
	Branches     string `yaml:"branches" mapstructure:"branches"`
	Products     string `yaml:"products" mapstructure:"products"`
}

// DefaultTables returns the staging tables and core reference tables.
func DefaultTables() Tables {
	return Tables{
		Transactions: "staging.transactions",
		Customers:    "staging.customers",
		Branches:     "core.branch",
		Products:     "core.product",
	}
}
