package models

import (
	"log"

	"bitbucket.org/zenithinteriors/crm_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Business{}, &User{},
		&Customer{}, &CustomerValueEntry{},
		&Enquiry{},
		&InventoryItem{},
		&Quotation{}, &QuotationItem{}, &QuotationReservation{},
		&Order{}, &OrderItem{},
		&Project{},
		&PaymentRecord{},
		&ServiceTicket{},
		&TransactionSequence{}, &TransactionPrefixOverride{},
		&StatusTransitionEvent{},
		&IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
