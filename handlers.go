package main

import (
	"errors"
	"net/http"
	"strconv"

	"bitbucket.org/zenithinteriors/crm_backend/models"
	"bitbucket.org/zenithinteriors/crm_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

func requireAuth(c *gin.Context) (string, bool) {
	businessId, ok := utils.GetBusinessIdFromContext(c.Request.Context())
	if !ok || businessId == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return businessId, true
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return false
	}
	return true
}

// respondError maps domain errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	var insufficient *models.InsufficientInventoryError
	var orderFailed *models.OrderCreationFailedError
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.As(err, &insufficient):
		c.JSON(http.StatusConflict, gin.H{"error": insufficient.Error()})
	case errors.As(err, &orderFailed):
		status := http.StatusInternalServerError
		if errors.As(orderFailed.Err, &insufficient) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{
			"error":          orderFailed.Error(),
			"correlation_id": orderFailed.CorrelationId,
		})
	case errors.Is(err, models.ErrBusinessIdMissing):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, models.ErrInvalidOperation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	}
}

/* auth */

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	info, err := models.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}

func registerHandler(c *gin.Context) {
	var input models.NewUser
	if !bindJSON(c, &input) {
		return
	}
	user, err := models.CreateUser(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func listUsersHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	users, err := models.GetAllUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

/* customers */

func createCustomerHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	var input models.NewCustomer
	if !bindJSON(c, &input) {
		return
	}
	customer, err := models.CreateCustomer(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func updateCustomerHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewCustomer
	if !bindJSON(c, &input) {
		return
	}
	customer, err := models.UpdateCustomer(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func getCustomerHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	customer, err := models.GetCustomer(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func listCustomersHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	var name *string
	if v := c.Query("q"); v != "" {
		name = &v
	}
	var stage *models.CustomerLifecycleStage
	if v := c.Query("stage"); v != "" {
		s := models.CustomerLifecycleStage(v)
		stage = &s
	}
	customers, err := models.GetAllCustomers(c.Request.Context(), name, stage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customers)
}

/* enquiries */

func createEnquiryHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	var input models.NewEnquiry
	if !bindJSON(c, &input) {
		return
	}
	enquiry, err := models.CreateEnquiry(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, enquiry)
}

func listEnquiriesHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	var status *models.EnquiryStatus
	if v := c.Query("status"); v != "" {
		s := models.EnquiryStatus(v)
		status = &s
	}
	var division *models.Division
	if v := c.Query("division"); v != "" {
		d := models.Division(v)
		division = &d
	}
	enquiries, err := models.GetAllEnquiries(c.Request.Context(), status, division)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, enquiries)
}

type enquiryStatusRequest struct {
	Status models.EnquiryStatus `json:"status" binding:"required"`
}

func updateEnquiryStatusHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	var req enquiryStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	enquiry, err := models.UpdateEnquiryStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, enquiry)
}

/* inventory */

func createInventoryItemHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	var input models.NewInventoryItem
	if !bindJSON(c, &input) {
		return
	}
	item, err := models.CreateInventoryItem(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func updateInventoryItemHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewInventoryItem
	if !bindJSON(c, &input) {
		return
	}
	item, err := models.UpdateInventoryItem(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func listInventoryItemsHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	var name, category *string
	if v := c.Query("q"); v != "" {
		name = &v
	}
	if v := c.Query("category"); v != "" {
		category = &v
	}
	items, err := models.GetAllInventoryItems(c.Request.Context(), name, category, c.Query("active") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func getInventoryItemHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	item, err := models.GetInventoryItem(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

type restockRequest struct {
	Quantity decimal.Decimal `json:"quantity" binding:"required"`
}

func restockInventoryItemHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	var req restockRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := models.RestockInventoryItem(c.Request.Context(), id, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func deactivateInventoryItemHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	item, err := models.DeactivateInventoryItem(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func reorderAlertsHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	items, err := models.GetReorderAlerts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

/* quotations */

func createQuotationHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	var input models.NewQuotation
	if !bindJSON(c, &input) {
		return
	}
	quotation, err := models.CreateQuotation(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, quotation)
}

func getQuotationHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	quotation, err := models.GetQuotation(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quotation)
}

func listQuotationsHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	var status *models.QuotationStatus
	if v := c.Query("status"); v != "" {
		s := models.QuotationStatus(v)
		status = &s
	}
	var customerId *int
	if v := c.Query("customer_id"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			customerId = &n
		}
	}
	var division *models.Division
	if v := c.Query("division"); v != "" {
		d := models.Division(v)
		division = &d
	}
	quotations, err := models.GetAllQuotations(c.Request.Context(), status, customerId, division)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quotations)
}

type quotationStatusRequest struct {
	Status models.QuotationStatus `json:"status" binding:"required"`
}

func updateQuotationStatusHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	var req quotationStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	quotation, err := models.UpdateQuotationStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quotation)
}

func approveQuotationHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	quotation, err := models.ApproveQuotation(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quotation)
}

/* orders */

func createOrderHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	var input models.NewOrder
	if !bindJSON(c, &input) {
		return
	}
	order, err := models.CreateOrder(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func getOrderHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	order, err := models.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func listOrdersHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	var status *models.OrderStatus
	if v := c.Query("status"); v != "" {
		s := models.OrderStatus(v)
		status = &s
	}
	var customerId *int
	if v := c.Query("customer_id"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			customerId = &n
		}
	}
	var division *models.Division
	if v := c.Query("division"); v != "" {
		d := models.Division(v)
		division = &d
	}
	orders, err := models.GetAllOrders(c.Request.Context(), status, customerId, division)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

type orderStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

func updateOrderStatusHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	var req orderStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := models.UpdateOrderStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

/* payments */

func createPaymentHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	var input models.NewPaymentRecord
	if !bindJSON(c, &input) {
		return
	}
	payment, err := models.CreatePaymentRecord(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

func listOrderPaymentsHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	payments, err := models.GetPaymentRecordsForOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payments)
}

/* projects */

func getProjectHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	project, err := models.GetProject(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

func listProjectsHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	var status *models.ProjectStatus
	if v := c.Query("status"); v != "" {
		s := models.ProjectStatus(v)
		status = &s
	}
	var division *models.Division
	if v := c.Query("division"); v != "" {
		d := models.Division(v)
		division = &d
	}
	projects, err := models.GetAllProjects(c.Request.Context(), status, division)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

type projectStatusRequest struct {
	Status models.ProjectStatus `json:"status" binding:"required"`
}

func updateProjectStatusHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	var req projectStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	project, err := models.UpdateProjectStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

/* service tickets */

func createTicketHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	var input models.NewServiceTicket
	if !bindJSON(c, &input) {
		return
	}
	ticket, err := models.CreateServiceTicket(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

func listTicketsHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	var status *models.TicketStatus
	if v := c.Query("status"); v != "" {
		s := models.TicketStatus(v)
		status = &s
	}
	var priority *models.TicketPriority
	if v := c.Query("priority"); v != "" {
		p := models.TicketPriority(v)
		priority = &p
	}
	tickets, err := models.GetAllServiceTickets(c.Request.Context(), status, priority)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tickets)
}

type ticketStatusRequest struct {
	Status models.TicketStatus `json:"status" binding:"required"`
}

func updateTicketStatusHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	var req ticketStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	ticket, err := models.UpdateServiceTicketStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func getTicketHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	id, ok := pathId(c)
	if !ok {
		return
	}
	ticket, err := models.GetServiceTicket(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

type transactionPrefixRequest struct {
	Module models.TransactionModule `json:"module" binding:"required"`
	Prefix string                   `json:"prefix" binding:"required"`
}

func setTransactionPrefixHandler(c *gin.Context) {
	if _, ok := requireAuth(c); !ok {
		return
	}
	var req transactionPrefixRequest
	if !bindJSON(c, &req) {
		return
	}
	override, err := models.SetTransactionPrefix(c.Request.Context(), req.Module, req.Prefix)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, override)
}
