package models

import "time"

// SchoolYear partitions enrollments, financial plans, and payments.
type SchoolYear struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	Current   bool      `db:"current" json:"current"`
	CenterID  string    `db:"center_id" json:"center_id"`
}

// Center represents the educational center operating the system. The
// document footer is printed on PDF receipts.
type Center struct {
	ID             string `db:"id" json:"id"`
	Name           string `db:"name" json:"name"`
	Address        string `db:"address" json:"address"`
	Phone          string `db:"phone" json:"phone"`
	DocumentFooter string `db:"document_footer" json:"document_footer"`
}
