package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/trezcool/schoolconnect/core"
)

// requester identifies the app to the payment gateway.
const requester = "AndroidApp"

const (
	msgEmptyMessage = "Please write some message first"
	msgEmptySubject = "Please write a subject"
	msgNoYear       = "Please select an academic year"
)

type (
	status struct {
		Success                *bool  `json:"success"`
		ErrorMessage           string `json:"errorMessage"`
		ValidationFailed       bool   `json:"validationFailed"`
		ValidationErrorMessage string `json:"validationErrorMessage"`
	}

	// envelope is the result wrapper shared by the gateway and fees services.
	envelope struct {
		ResponseCode core.FlexString `json:"ResponseCode"`
		ResponseMsg  core.FlexString `json:"ResponseMsg"`
		Status       *status         `json:"status"`
		Result       json.RawMessage `json:"result"`
	}

	// Client talks to the communication (chat) and fees/payment services.
	Client struct {
		http       *resty.Client
		gatewayURL string
		feesURL    string
		logger     core.Logger
	}
)

func NewClient(conf core.APIConfig, logger core.Logger) *Client {
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &Client{
		http: resty.New().
			SetTimeout(conf.Timeout).
			SetRetryCount(conf.RetryCount).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
		gatewayURL: strings.TrimRight(conf.GatewayBaseURL, "/"),
		feesURL:    strings.TrimRight(conf.FeesBaseURL, "/"),
		logger:     logger,
	}
}

// TeacherRoles lists the teachers the parent can start a conversation with.
func (c *Client) TeacherRoles(ctx context.Context, id Identity) ([]TeacherRole, error) {
	query := map[string]string{
		"schoolDB":    id.SchoolDB,
		"parentid":    id.ParentID,
		"divName":     id.Division,
		"className":   id.ClassName,
		"sectionName": id.Section,
	}
	roles := make([]TeacherRole, 0)
	if err := c.get(ctx, c.gatewayURL+"/communication/parent/roles", query, &roles); err != nil {
		return nil, errors.Wrap(err, "fetching teacher roles")
	}
	return roles, nil
}

// Communications lists the parent's conversations with the given status (open or closed).
func (c *Client) Communications(ctx context.Context, id Identity, st string) ([]Communication, error) {
	st = core.CleanString(st, true /* lower */)
	if st == "" {
		st = StatusOpen
	}
	if st != StatusOpen && st != StatusClosed {
		return nil, core.NewValidationError(
			errors.Errorf("unknown communication status %q", st),
			core.FieldError{Field: "status", Error: "must be open or closed"},
		)
	}
	query := map[string]string{"schoolDB": id.SchoolDB, "parentid": id.ParentID, "status": st}
	list := make([]Communication, 0)
	if err := c.get(ctx, c.gatewayURL+"/communication/parent/communicationList", query, &list); err != nil {
		return nil, errors.Wrap(err, "fetching communications")
	}
	return list, nil
}

// Messages returns one conversation.
func (c *Client) Messages(ctx context.Context, id Identity, communicationID string) (Thread, error) {
	var detail struct {
		Header *struct {
			IsActive core.FlexString `json:"IS_ACTIVE"`
		} `json:"header"`
		Detail []Message `json:"detail"`
	}
	query := map[string]string{"schoolDB": id.SchoolDB, "communicationID": communicationID}
	if err := c.get(ctx, c.gatewayURL+"/communication/detail", query, &detail); err != nil {
		return Thread{}, errors.Wrap(err, "fetching messages")
	}

	thread := Thread{Messages: detail.Detail, Active: true}
	if thread.Messages == nil {
		thread.Messages = []Message{}
	}
	if detail.Header != nil {
		active := strings.ToUpper(string(detail.Header.IsActive))
		thread.Active = active != "N" && active != "0" && active != "FALSE"
	}
	return thread, nil
}

// SendMessage posts `text` to a conversation and returns the messages the service echoes back.
func (c *Client) SendMessage(ctx context.Context, id Identity, communicationID, text string) ([]Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, core.NewValidationError(errors.New(msgEmptyMessage), core.FieldError{Field: "msg", Error: msgEmptyMessage})
	}
	commID, err := strconv.ParseInt(communicationID, 10, 64)
	if err != nil {
		return nil, core.NewValidationError(
			errors.Wrap(err, "parsing communication id"),
			core.FieldError{Field: "communicationID", Error: "must be a number"},
		)
	}

	body := map[string]interface{}{"schoolDB": id.SchoolDB, "communicationID": commID, "msg": text}
	sent := make([]Message, 0)
	if err := c.post(ctx, c.gatewayURL+"/communication/sendMessage", nil, body, &sent); err != nil {
		return nil, errors.Wrap(err, "sending message")
	}
	return sent, nil
}

// StartCommunication opens a conversation with the teacher holding `role`.
func (c *Client) StartCommunication(ctx context.Context, id Identity, role TeacherRole, subject, message string) error {
	subject, message = strings.TrimSpace(subject), strings.TrimSpace(message)
	var fields []core.FieldError
	if subject == "" {
		fields = append(fields, core.FieldError{Field: "messageSubject", Error: msgEmptySubject})
	}
	if message == "" {
		fields = append(fields, core.FieldError{Field: "messageDetail", Error: msgEmptyMessage})
	}
	if len(fields) > 0 {
		return core.NewValidationError(errors.New(fields[0].Error), fields...)
	}

	parentID, err := strconv.Atoi(id.ParentID)
	if err != nil {
		return errors.Wrap(err, "parsing parent id")
	}
	roleID, err := strconv.Atoi(string(role.RoleID))
	if err != nil {
		return core.NewValidationError(
			errors.Wrap(err, "parsing teacher role id"),
			core.FieldError{Field: "teacherRoleID", Error: "must be a number"},
		)
	}

	body := map[string]interface{}{
		"schoolDB":       id.SchoolDB,
		"parentid":       parentID,
		"division":       id.Division,
		"class":          id.ClassName,
		"sectionName":    id.Section,
		"messageDetail":  message,
		"messageSubject": subject,
		"teacherRoleID":  roleID,
		"subID":          role.subjectID(),
	}
	if err := c.post(ctx, c.gatewayURL+"/communication/parent/startCommunication", nil, body, nil); err != nil {
		return errors.Wrap(err, "starting communication")
	}
	return nil
}

// AcademicYears lists the years fee receipts exist for.
func (c *Client) AcademicYears(ctx context.Context, id Identity) (AcademicYears, error) {
	body := map[string]string{"feesDbName": id.FeesDB, "pId": id.ParentID}
	raw, err := c.call(ctx, http.MethodPost, c.feesURL+"/getAcademicYear", nil, body)
	if err != nil {
		return AcademicYears{}, errors.Wrap(err, "fetching academic years")
	}

	var years AcademicYears
	if err := json.Unmarshal(raw, &years); err != nil {
		return AcademicYears{}, core.NewServerError(errors.Wrap(err, "decoding academic years").Error(), 0)
	}
	if years.Years == nil {
		years.Years = []string{}
	}
	return years, nil
}

// FeeConfig returns the fees setup for the academic year `year` (e.g. "2024-2025").
func (c *Client) FeeConfig(ctx context.Context, id Identity, year string) (FeeConfig, error) {
	year = strings.TrimSpace(year)
	if year == "" {
		return FeeConfig{}, core.NewValidationError(errors.New(msgNoYear), core.FieldError{Field: "year", Error: msgNoYear})
	}
	query := map[string]string{
		"dbName":      id.FeesDB,
		"schoolDB":    id.SchoolDB,
		"parentID":    id.ParentID,
		"className":   id.ClassName,
		"divName":     id.Division,
		"sessionYear": year,
	}
	var wire wireFeeConfig
	if err := c.get(ctx, c.gatewayURL+"/student/config", query, &wire); err != nil {
		return FeeConfig{}, errors.Wrap(err, "fetching fee config")
	}
	return wire.feeConfig(year), nil
}

// Receipts lists the fee receipts of `year`; an empty year lists them all.
// Receipts that do not name their year are always kept.
func (c *Client) Receipts(ctx context.Context, id Identity, year string) ([]Receipt, error) {
	body := map[string]string{
		"feesDbName": id.FeesDB,
		"pId":        id.ParentID,
		"ssoName":    id.SSOName,
		"ssoPass":    id.SSOPass,
	}
	raw, err := c.call(ctx, http.MethodPost, c.feesURL+"/getPaymentReceipts", nil, body)
	if err != nil {
		return nil, errors.Wrap(err, "fetching receipts")
	}

	var out struct {
		Receipts []Receipt `json:"receiptList"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, core.NewServerError(errors.Wrap(err, "decoding receipts").Error(), 0)
	}

	year = strings.TrimSpace(year)
	receipts := make([]Receipt, 0, len(out.Receipts))
	for _, r := range out.Receipts {
		if ry := strings.TrimSpace(string(r.AcademicYear)); year == "" || ry == "" || ry == year {
			receipts = append(receipts, r)
		}
	}
	return receipts, nil
}

func (c *Client) RecentPayments(ctx context.Context, id Identity) ([]Payment, error) {
	query := map[string]string{"schoolDB": id.FeesDB, "parentID": id.ParentID}
	payments := make([]Payment, 0)
	if err := c.get(ctx, c.gatewayURL+"/payment/recentPayments", query, &payments); err != nil {
		return nil, errors.Wrap(err, "fetching recent payments")
	}
	return payments, nil
}

// InitPayment registers a fees transaction and returns the webview handoff for it.
func (c *Client) InitPayment(ctx context.Context, id Identity, req PaymentRequest) (Handoff, error) {
	if err := core.ValidateStruct(req, "no fees selected for payment"); err != nil {
		return Handoff{}, err
	}

	var paymentID core.FlexString
	query := map[string]string{"requester": requester}
	if err := c.post(ctx, c.gatewayURL+"/payment/init", query, req, &paymentID); err != nil {
		return Handoff{}, errors.Wrap(err, "initiating payment")
	}
	if paymentID == "" {
		return Handoff{}, core.NewServerError("payment gateway returned no payment id", 0)
	}

	start := url.Values{}
	start.Set("paymentID", string(paymentID))
	start.Set("parentID", id.ParentID)
	start.Set("requester", requester)
	return Handoff{
		PaymentID: string(paymentID),
		StartURL:  c.gatewayURL + "/payment/start?" + start.Encode(),
		CloseURL:  c.gatewayURL + "/payment/showmsg",
	}, nil
}

func (c *Client) get(ctx context.Context, endpoint string, query map[string]string, result interface{}) error {
	return c.do(ctx, http.MethodGet, endpoint, query, nil, result)
}

func (c *Client) post(ctx context.Context, endpoint string, query map[string]string, body, result interface{}) error {
	return c.do(ctx, http.MethodPost, endpoint, query, body, result)
}

// do calls an enveloped endpoint and decodes its `result` into `result` (when not nil).
func (c *Client) do(ctx context.Context, method, endpoint string, query map[string]string, body, result interface{}) error {
	raw, err := c.call(ctx, method, endpoint, query, body)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return core.NewServerError(errors.Wrap(err, "decoding response").Error(), 0)
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, result); err != nil {
		return core.NewServerError(errors.Wrap(err, "decoding response result").Error(), 0)
	}
	return nil
}

// call performs the request and applies the envelope checks; it returns the raw body.
func (c *Client) call(ctx context.Context, method, endpoint string, query map[string]string, body interface{}) ([]byte, error) {
	req := c.http.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, endpoint)
	if err != nil {
		c.logger.Warn("calling gateway", err, map[string]interface{}{"endpoint": endpoint})
		return nil, core.AsNetworkError(err)
	}

	raw := resp.Body()
	var env envelope
	isJSON := json.Unmarshal(raw, &env) == nil

	if resp.IsError() {
		if isJSON {
			if msg := env.failure(""); msg != "" {
				return nil, core.NewServerError(msg, resp.StatusCode())
			}
		}
		return nil, core.NewServerError(fmt.Sprintf("Backend API not responded correctly status :%d", resp.StatusCode()), resp.StatusCode())
	}
	if !isJSON {
		return nil, core.NewServerError("unexpected non-JSON response", resp.StatusCode())
	}
	if code := string(env.ResponseCode); code != "" && !strings.HasPrefix(code, "20") {
		return nil, core.NewServerError("Error :"+string(env.ResponseMsg), 0)
	}
	if msg := env.failure("error "); msg != "" {
		return nil, core.NewServerError(msg, 0)
	}
	return raw, nil
}

// failure returns the envelope's failure message, or "" when it reports none.
func (e envelope) failure(prefix string) string {
	if e.Status == nil {
		return ""
	}
	if e.Status.Success != nil && !*e.Status.Success {
		return prefix + e.Status.ErrorMessage
	}
	if e.Status.ValidationFailed {
		if prefix != "" {
			prefix = "Validation error "
		}
		return prefix + e.Status.ValidationErrorMessage
	}
	return ""
}
