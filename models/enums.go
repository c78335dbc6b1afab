package models

type QuotationStatus string

const (
	QuotationStatusDraft    QuotationStatus = "Draft"
	QuotationStatusSent     QuotationStatus = "Sent"
	QuotationStatusRevised  QuotationStatus = "Revised"
	QuotationStatusApproved QuotationStatus = "Approved"
	QuotationStatusRejected QuotationStatus = "Rejected"
	QuotationStatusExpired  QuotationStatus = "Expired"
)

func (s QuotationStatus) IsValid() bool {
	switch s {
	case QuotationStatusDraft, QuotationStatusSent, QuotationStatusRevised,
		QuotationStatusApproved, QuotationStatusRejected, QuotationStatusExpired:
		return true
	}
	return false
}

// releasesReservations reports whether entering this status hands reserved
// stock back to the pool.
func (s QuotationStatus) releasesReservations() bool {
	return s == QuotationStatusRejected || s == QuotationStatusExpired
}

type OrderStatus string

const (
	OrderStatusConfirmed  OrderStatus = "Confirmed"
	OrderStatusInProgress OrderStatus = "InProgress"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusClosed     OrderStatus = "Closed"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusConfirmed, OrderStatusInProgress, OrderStatusDelivered,
		OrderStatusClosed, OrderStatusCancelled:
		return true
	}
	return false
}

type CustomerLifecycleStage string

const (
	LifecycleStageLead     CustomerLifecycleStage = "Lead"
	LifecycleStageProspect CustomerLifecycleStage = "Prospect"
	LifecycleStageCustomer CustomerLifecycleStage = "Customer"
	LifecycleStageVip      CustomerLifecycleStage = "VIP"
	LifecycleStageInactive CustomerLifecycleStage = "Inactive"
)

// lifecycleStageRank orders the stages for forward-only transitions.
// Inactive sits outside the funnel and is handled separately.
var lifecycleStageRank = map[CustomerLifecycleStage]int{
	LifecycleStageLead:     1,
	LifecycleStageProspect: 2,
	LifecycleStageCustomer: 3,
	LifecycleStageVip:      4,
}

type ProjectStatus string

const (
	ProjectStatusPlanning   ProjectStatus = "planning"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusOnHold     ProjectStatus = "on_hold"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusCancelled  ProjectStatus = "cancelled"
)

type PaymentType string

const (
	PaymentTypeAdvance PaymentType = "Advance"
	PaymentTypePartial PaymentType = "Partial"
	PaymentTypeFinal   PaymentType = "Final"
	PaymentTypeRefund  PaymentType = "Refund"
)

type PaymentMode string

const (
	PaymentModeCash         PaymentMode = "Cash"
	PaymentModeBankTransfer PaymentMode = "BankTransfer"
	PaymentModeCheque       PaymentMode = "Cheque"
	PaymentModeMobileWallet PaymentMode = "MobileWallet"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "Pending"
	PaymentStatusConfirmed PaymentStatus = "Confirmed"
	PaymentStatusFailed    PaymentStatus = "Failed"
)

type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "Open"
	TicketStatusInProgress TicketStatus = "InProgress"
	TicketStatusResolved   TicketStatus = "Resolved"
	TicketStatusClosed     TicketStatus = "Closed"
)

type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "Low"
	TicketPriorityMedium   TicketPriority = "Medium"
	TicketPriorityHigh     TicketPriority = "High"
	TicketPriorityCritical TicketPriority = "Critical"
)

type EnquiryStatus string

const (
	EnquiryStatusNew       EnquiryStatus = "New"
	EnquiryStatusContacted EnquiryStatus = "Contacted"
	EnquiryStatusQuoted    EnquiryStatus = "Quoted"
	EnquiryStatusWon       EnquiryStatus = "Won"
	EnquiryStatusLost      EnquiryStatus = "Lost"
)

func (s EnquiryStatus) IsValid() bool {
	switch s {
	case EnquiryStatusNew, EnquiryStatusContacted, EnquiryStatusQuoted,
		EnquiryStatusWon, EnquiryStatusLost:
		return true
	}
	return false
}

type Division string

const (
	DivisionInterior   Division = "Interior"
	DivisionFurniture  Division = "Furniture"
	DivisionRenovation Division = "Renovation"
)

func (d Division) IsValid() bool {
	switch d {
	case DivisionInterior, DivisionFurniture, DivisionRenovation:
		return true
	}
	return false
}

// TransactionModule names a numbered document series.
type TransactionModule string

const (
	ModuleQuotation TransactionModule = "Quotation"
	ModuleOrder     TransactionModule = "Order"
	ModulePayment   TransactionModule = "Payment"
	ModuleTicket    TransactionModule = "Ticket"
)

type EventReferenceType string

const (
	EventReferenceTypeQuotation EventReferenceType = "Quotation"
	EventReferenceTypeOrder     EventReferenceType = "Order"
	EventReferenceTypePayment   EventReferenceType = "Payment"
	EventReferenceTypeTicket    EventReferenceType = "Ticket"
	EventReferenceTypeCustomer  EventReferenceType = "Customer"
)

type OutboxPublishStatus string

const (
	OutboxPublishStatusPending    OutboxPublishStatus = "PENDING"
	OutboxPublishStatusProcessing OutboxPublishStatus = "PROCESSING"
	OutboxPublishStatusSent       OutboxPublishStatus = "SENT"
	OutboxPublishStatusFailed     OutboxPublishStatus = "FAILED"
	OutboxPublishStatusDead       OutboxPublishStatus = "DEAD"
)

type IdempotencyStatus string

const (
	IdempotencyStatusStarted   IdempotencyStatus = "STARTED"
	IdempotencyStatusSucceeded IdempotencyStatus = "SUCCEEDED"
	IdempotencyStatusFailed    IdempotencyStatus = "FAILED"
)
