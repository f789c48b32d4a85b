package validation

import (
	"strings"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
)

const (
	maxName         = 200
	maxPhone        = 50
	maxProduct      = 200
	maxProductsText = 2000
	maxConversation = 100
)

// OrderRequest is the camelCase body of POST /orders and POST /create-order.
type OrderRequest struct {
	CustomerName  Value `json:"customerName"`
	CustomerPhone Value `json:"customerPhone"`
	Products      Value `json:"products"`
}

// OrderInput is an order request after trimming and truncation.
type OrderInput struct {
	CustomerName  string   `validate:"notblank" msg:"Customer name cannot be empty"`
	CustomerPhone string   `validate:"phone" msg:"Invalid phone number format"`
	Products      []string `validate:"min=1,max=50,dive,notblank" msg:"min=Products array cannot be empty;max=Too many products (max 50);notblank=Each product must be a non-empty string"`
}

// NormalizeOrder sanitizes and validates an order request.
func NormalizeOrder(v *validatorv10.Validate, req OrderRequest) (OrderInput, error) {
	if !req.CustomerName.Present() || !req.CustomerPhone.Present() || !req.Products.Present() {
		return OrderInput{}, badRequest("Missing required fields")
	}
	in := OrderInput{
		CustomerName:  Clean(req.CustomerName.Text(), maxName),
		CustomerPhone: Clean(req.CustomerPhone.Text(), maxPhone),
	}
	if err := CheckFields(v, in, "CustomerName", "CustomerPhone"); err != nil {
		return OrderInput{}, err
	}
	elems, ok := req.Products.Array()
	if !ok {
		return OrderInput{}, badRequest("Products must be an array")
	}
	in.Products = make([]string, len(elems))
	for i, e := range elems {
		// non-strings are left blank so they fail the element rule
		if s, ok := e.Str(); ok {
			in.Products[i] = Clean(s, maxProduct)
		}
	}
	if err := Check(v, in); err != nil {
		return OrderInput{}, err
	}
	return in, nil
}

// PedidoRequest is the snake_case body of POST /pedidos.
type PedidoRequest struct {
	CustomerName  Value `json:"customer_name"`
	CustomerPhone Value `json:"customer_phone"`
	Products      Value `json:"products"`
}

// PedidoInput checks raw lengths; values are trimmed only after validation.
type PedidoInput struct {
	CustomerName  string `validate:"notblank,max=200" msg:"Invalid customer_name: must be a non-empty string with max 200 characters"`
	CustomerPhone string `validate:"notblank,max=50" msg:"Invalid customer_phone: must be a non-empty string with max 50 characters"`
	Products      []string
}

// NormalizePedido accepts products as an array of strings or one string and
// caps their combined length.
func NormalizePedido(v *validatorv10.Validate, req PedidoRequest) (PedidoInput, error) {
	if !req.CustomerName.Present() || !req.CustomerPhone.Present() || !req.Products.Present() {
		return PedidoInput{}, badRequest("Missing required fields: customer_name, customer_phone, products")
	}
	in := PedidoInput{}
	in.CustomerName, _ = req.CustomerName.Str()
	in.CustomerPhone, _ = req.CustomerPhone.Str()
	if err := Check(v, in); err != nil {
		return PedidoInput{}, err
	}

	var products []string
	if s, ok := req.Products.Str(); ok {
		products = []string{strings.TrimSpace(s)}
	} else if elems, ok := req.Products.Array(); ok {
		for _, e := range elems {
			if p := strings.TrimSpace(e.Text()); p != "" {
				products = append(products, p)
			}
		}
	} else {
		return PedidoInput{}, badRequest("Invalid products: must be an array or string")
	}

	in.CustomerName = Clean(in.CustomerName, maxName)
	in.CustomerPhone = Clean(in.CustomerPhone, maxPhone)
	in.Products = capTotal(products, maxProductsText)
	return in, nil
}

// capTotal keeps products until their combined length reaches limit,
// truncating the last one kept.
func capTotal(products []string, limit int) []string {
	out := make([]string, 0, len(products))
	left := limit
	for _, p := range products {
		if left <= 0 {
			break
		}
		p = Truncate(p, left)
		left -= len([]rune(p))
		out = append(out, p)
	}
	return out
}

// ReservaRequest is the snake_case body of POST /reservas.
type ReservaRequest struct {
	CustomerName    Value `json:"customer_name"`
	CustomerPhone   Value `json:"customer_phone"`
	NumberOfPeople  Value `json:"number_of_people"`
	ReservationTime Value `json:"reservation_time"`
}

type ReservaInput struct {
	CustomerName    string    `validate:"notblank,max=200" msg:"Invalid customer_name: must be a non-empty string with max 200 characters"`
	CustomerPhone   string    `validate:"notblank,max=50" msg:"Invalid customer_phone: must be a non-empty string with max 50 characters"`
	NumberOfPeople  int       `validate:"min=1,max=100" msg:"Invalid number_of_people: must be a number between 1 and 100"`
	ReservationTime string    `validate:"iso8601" msg:"Invalid reservation_time: must be a valid ISO 8601 date"`
	At              time.Time `validate:"-"`
}

// NormalizeReserva requires number_of_people to be a JSON number.
func NormalizeReserva(v *validatorv10.Validate, req ReservaRequest) (ReservaInput, error) {
	if !req.CustomerName.Present() || !req.CustomerPhone.Present() ||
		!req.NumberOfPeople.Present() || !req.ReservationTime.Present() {
		return ReservaInput{}, badRequest("Missing required fields: customer_name, customer_phone, number_of_people, reservation_time")
	}
	in := ReservaInput{ReservationTime: req.ReservationTime.Text()}
	in.CustomerName, _ = req.CustomerName.Str()
	in.CustomerPhone, _ = req.CustomerPhone.Str()
	in.NumberOfPeople, _ = req.NumberOfPeople.Int()
	if err := Check(v, in); err != nil {
		return ReservaInput{}, err
	}
	at, err := ParseInstant(in.ReservationTime)
	if err != nil {
		return ReservaInput{}, badRequest("Invalid reservation_time: must be a valid ISO 8601 date")
	}
	in.At = at.UTC()
	in.CustomerName = Clean(in.CustomerName, maxName)
	in.CustomerPhone = Clean(in.CustomerPhone, maxPhone)
	return in, nil
}

// ApprovalRequest is the body of POST /request-reservation-approval.
type ApprovalRequest struct {
	CustomerName   Value `json:"customerName"`
	CustomerPhone  Value `json:"customerPhone"`
	Date           Value `json:"date"`
	Time           Value `json:"time"`
	NumberOfPeople Value `json:"numberOfPeople"`
	ConversationID Value `json:"conversationId"`
}

type ApprovalInput struct {
	CustomerName   string    `validate:"notblank" msg:"Customer name cannot be empty"`
	CustomerPhone  string    `validate:"phone" msg:"Invalid phone number format"`
	Date           string    `validate:"ymd,notpast,withinyear" msg:"ymd=Invalid date format. Use YYYY-MM-DD;notpast=Reservation date cannot be in the past;withinyear=Reservation date cannot be more than 1 year in the future"`
	Time           string    `validate:"hms" msg:"Invalid time format. Use HH:MM:SS"`
	NumberOfPeople int       `validate:"min=1,max=100" msg:"Number of people must be between 1 and 100"`
	ConversationID *string   `validate:"omitempty,max=100"`
	Today          time.Time `validate:"-"`
}

// NormalizeApproval validates the requested date against today, given in
// the restaurant timezone.
func NormalizeApproval(v *validatorv10.Validate, req ApprovalRequest, today time.Time) (ApprovalInput, error) {
	if !req.CustomerName.Present() || !req.CustomerPhone.Present() || !req.Date.Present() ||
		!req.Time.Present() || !req.NumberOfPeople.Present() {
		return ApprovalInput{}, badRequest("Missing required fields")
	}
	in := ApprovalInput{
		CustomerName:  Clean(req.CustomerName.Text(), maxName),
		CustomerPhone: Clean(req.CustomerPhone.Text(), maxPhone),
		Date:          req.Date.Text(),
		Time:          req.Time.Text(),
		Today:         today,
	}
	in.NumberOfPeople, _ = req.NumberOfPeople.LeadingInt()
	if req.ConversationID.Present() {
		id := Clean(req.ConversationID.Text(), maxConversation)
		in.ConversationID = &id
	}
	if err := Check(v, in); err != nil {
		return ApprovalInput{}, err
	}
	return in, nil
}

// AvailabilityRequest is the body of POST /check-reservation-availability.
type AvailabilityRequest struct {
	Date           Value `json:"date"`
	Time           Value `json:"time"`
	NumberOfPeople Value `json:"numberOfPeople"`
}

type AvailabilityInput struct {
	Date           string
	Time           string
	NumberOfPeople int
}

func NormalizeAvailability(req AvailabilityRequest) (AvailabilityInput, error) {
	if !req.Date.Present() || !req.Time.Present() || !req.NumberOfPeople.Present() {
		return AvailabilityInput{}, badRequest("Missing required fields: date, time, numberOfPeople")
	}
	n, ok := req.NumberOfPeople.LeadingInt()
	if !ok || n < 1 {
		return AvailabilityInput{}, badRequest("Invalid numberOfPeople")
	}
	return AvailabilityInput{Date: req.Date.Text(), Time: req.Time.Text(), NumberOfPeople: n}, nil
}

// StatusRequest is the body of the dashboard status PATCH routes.
type StatusRequest struct {
	Status      string  `json:"status" validate:"required" msg:"Status is required"`
	WorkerNotes *string `json:"workerNotes"`
}

// ApprovalStatusRequest is the body of POST /check-approval-status.
type ApprovalStatusRequest struct {
	ApprovalID string `json:"approvalId" validate:"required" msg:"Missing approvalId"`
}
