package gateway

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/trezcool/schoolconnect/core"
	"github.com/trezcool/schoolconnect/core/auth"
)

// Communication statuses
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

type (
	// Identity is the student/parent addressing the gateway needs, taken from the login profile.
	Identity struct {
		SchoolDB      string `json:"instDbValue" validate:"required"`
		ParentID      string `json:"pId" validate:"required,numeric"`
		ClassName     string `json:"className"`
		Division      string `json:"divName"`
		Section       string `json:"section"`
		FeesDB        string `json:"feesDbName"`
		FeesEntryType string `json:"feesEntryType"`
		ConfigProp    string `json:"configProp"`
		LocalhostProp string `json:"localhostProp"`
		SSOName       string `json:"-"`
		SSOPass       string `json:"-"`
	}

	TeacherRole struct {
		RoleID    core.FlexString `json:"ORG_TEACHER_ROLE_ID"`
		RoleCode  core.FlexString `json:"ROLE_CODE"`
		RoleName  core.FlexString `json:"ROLE_NAME"`
		SubjectID core.FlexString `json:"SUB_ID"`
		FirstName core.FlexString `json:"TECH_FIRST_NAME"`
		LastName  core.FlexString `json:"TECH_LAST_NAME"`
	}

	Communication struct {
		ID             core.FlexString `json:"ORG_COMMUNICATION_MASTER_ID"`
		Subject        core.FlexString `json:"SUBJECT"`
		MessageSubject core.FlexString `json:"MESSAGE_SUB"`
		RoleName       core.FlexString `json:"ROLE_NAME"`
		CreatedAt      core.FlexString `json:"CREATED_TIMESTAMP"`
	}

	Message struct {
		ID        string `json:"id"`
		TeacherID string `json:"teacherId,omitempty"`
		Sender    string `json:"sender,omitempty"`
		Text      string `json:"text"`
		// FromParent is true for messages without a teacher.
		FromParent bool `json:"fromParent"`
	}

	Thread struct {
		Active   bool      `json:"active"`
		Messages []Message `json:"messages"`
	}

	Payment struct {
		PaymentID core.FlexString `json:"PAYMENT_ID"`
		Amount    core.FlexString `json:"AMOUNT"`
		State     core.FlexString `json:"STATE_NAME"`
		CreatedAt core.FlexString `json:"CREATED_TIMESTAMP"`
	}

	AcademicYears struct {
		Years []string        `json:"acedemicYearList"`
		Data  json.RawMessage `json:"AcedemicDataList,omitempty"`
	}

	// FeeConfig is the fees setup of the student's school for one academic year.
	FeeConfig struct {
		ParentCommunication  string   `json:"communicationParent"`
		TeacherCommunication string   `json:"communicationTeacher"`
		BifurcationRequired  bool     `json:"bifurcationRequired"`
		BifurcationGroups    []string `json:"bifurcationGroups"`
		OnlineFee            string   `json:"onlineFee"`
		OnlineFeeMessage     string   `json:"onlineFeeMessage"`
		PendingFee           string   `json:"pendingFee"`
		PrevYearFees         string   `json:"prevYearFees"`
		CurrentYear          string   `json:"currentYear"`
		BaseYear             int      `json:"baseYear"` // first year of PrevYearFees, 0 when unknown
	}

	Receipt struct {
		ReceiptNo    core.FlexString `json:"receiptNo"`
		AmountPaid   core.FlexString `json:"amountPaid"`
		FeesDate     core.FlexString `json:"feesDate"`
		AcademicYear core.FlexString `json:"academicYear"`
		ReceiptURL   core.FlexString `json:"receiptURL"`
	}

	// PaymentRequest is the fees transaction built by the fees screen, forwarded as is.
	PaymentRequest struct {
		Transactions []json.RawMessage `json:"feesOnlineTransactionDTO" validate:"required,min=1"`
	}

	// Handoff is what a webview needs to run the gateway's payment pages: open StartURL and
	// stop as soon as a page under CloseURL loads.
	Handoff struct {
		PaymentID string `json:"paymentId"`
		StartURL  string `json:"startUrl"`
		CloseURL  string `json:"closeUrl"`
	}

	wireFeeConfig struct {
		ParentCommunication  core.FlexString `json:"COMMUNICATION_PARENT"`
		TeacherCommunication core.FlexString `json:"COMMUNICATION_TEACHER"`
		Bifurcation          core.FlexString `json:"FEE_BIFURCATION"`
		BifurcationGroups    core.FlexString `json:"FEE_BIFURCATION_GROUP_NAME"`
		OnlineFee            core.FlexString `json:"ONLINE_FEE"`
		OnlineFeeMessage     core.FlexString `json:"ONLINE_FEE_MESSAGE"`
		PendingFee           core.FlexString `json:"PENDING_FEE"`
		PrevYearFees         core.FlexString `json:"PREV_YEAR_FEES"`
	}

	wireMessage struct {
		ID        core.FlexString `json:"ORG_COMMUNICATION_DETAIL_ID"`
		TeacherID core.FlexString `json:"TEACHER_ID"`
		FirstName core.FlexString `json:"TECH_FIRST_NAME"`
		LastName  core.FlexString `json:"TECH_LAST_NAME"`
		Message   core.FlexString `json:"MESSAGE"`
		Messsge   core.FlexString `json:"MESSSGE"` // sic, some schools send this
		Content   core.FlexString `json:"CONTENT"`
	}
)

// IdentityFrom reads the gateway identity off a login payload.
func IdentityFrom(p *auth.Payload) (Identity, error) {
	id := Identity{
		SchoolDB:      p.Field("instDbValue"),
		ParentID:      p.Field("pId"),
		ClassName:     p.Field("className"),
		Division:      core.FirstNonEmpty(p.Field("divName"), p.Field("divisionName")),
		Section:       p.Field("section"),
		FeesDB:        p.Field("feesDbName"),
		FeesEntryType: p.Field("feesEntryType"),
		ConfigProp:    p.Field("configProp"),
		LocalhostProp: p.Field("localhostProp"),
		SSOName:       p.Field("ssoName"),
		SSOPass:       p.Field("ssoPass"),
	}
	if err := core.ValidateStruct(id, "the session profile lacks the school identity"); err != nil {
		return Identity{}, err
	}
	return id, nil
}

func (w wireFeeConfig) feeConfig(year string) FeeConfig {
	conf := FeeConfig{
		ParentCommunication:  string(w.ParentCommunication),
		TeacherCommunication: string(w.TeacherCommunication),
		BifurcationRequired:  string(w.Bifurcation) == "Y",
		BifurcationGroups:    []string{},
		OnlineFee:            string(w.OnlineFee),
		OnlineFeeMessage:     string(w.OnlineFeeMessage),
		PendingFee:           string(w.PendingFee),
		PrevYearFees:         string(w.PrevYearFees),
		CurrentYear:          year,
	}
	for _, group := range strings.Split(string(w.BifurcationGroups), ",") {
		if group = strings.TrimSpace(group); group != "" {
			conf.BifurcationGroups = append(conf.BifurcationGroups, group)
		}
	}
	if prev := conf.PrevYearFees; len(prev) > 4 {
		conf.BaseYear, _ = strconv.Atoi(strings.TrimSpace(strings.SplitN(prev, "-", 2)[0]))
	}
	return conf
}

// TeacherName is the display name of the teacher holding the role.
func (r TeacherRole) TeacherName() string {
	return strings.TrimSpace(string(r.FirstName) + " " + string(r.LastName))
}

// subjectID is what startCommunication expects: the subject for teacher roles, "NA" otherwise.
func (r TeacherRole) subjectID() string {
	if r.RoleCode == "T" {
		return string(r.SubjectID)
	}
	return "NA"
}

func (m *Message) UnmarshalJSON(b []byte) error {
	var w wireMessage
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*m = Message{
		ID:         string(w.ID),
		TeacherID:  string(w.TeacherID),
		Sender:     strings.TrimSpace(string(w.FirstName) + " " + string(w.LastName)),
		Text:       core.FirstNonEmpty(string(w.Message), string(w.Messsge), string(w.Content)),
		FromParent: w.TeacherID == "",
	}
	return nil
}

// IsClose reports whether the webview reached the end of the payment flow.
func (h Handoff) IsClose(pageURL string) bool {
	return h.CloseURL != "" && strings.HasPrefix(pageURL, h.CloseURL)
}

// ResultMessage returns the `msg` the gateway put on its close page, if any.
func (h Handoff) ResultMessage(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("msg")
}
