package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/schoolconnect/core"
	"github.com/trezcool/schoolconnect/core/auth"
)

var testIdentity = Identity{
	SchoolDB:  "hccs",
	ParentID:  "4411",
	ClassName: "V",
	Division:  "A",
	Section:   "Primary",
	FeesDB:    "hccs_fees",
}

type recorded struct {
	method string
	path   string
	query  map[string]string
	body   map[string]interface{}
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Client, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, query: map[string]string{}}
		for k := range r.URL.Query() {
			rec.query[k] = r.URL.Query().Get(k)
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}
		calls = append(calls, rec)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(core.APIConfig{
		GatewayBaseURL: srv.URL + "/config/",
		FeesBaseURL:    srv.URL + "/fees",
		Timeout:        2 * time.Second,
	}, nil)
	return c, &calls
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestIdentityFrom(t *testing.T) {
	profile := func(kv map[string]interface{}) *auth.Payload {
		p := &auth.Payload{Profile: map[string]json.RawMessage{}}
		for k, v := range kv {
			raw, _ := json.Marshal(v)
			p.Profile[k] = raw
		}
		return p
	}

	id, err := IdentityFrom(profile(map[string]interface{}{
		"instDbValue": "hccs", "pId": 4411, "className": "V", "divisionName": "A", "feesDbName": "hccs_fees",
	}))
	require.NoError(t, err)
	assert.Equal(t, "4411", id.ParentID)
	assert.Equal(t, "A", id.Division)
	assert.Equal(t, "hccs_fees", id.FeesDB)

	_, err = IdentityFrom(profile(map[string]interface{}{"pId": "4411"}))
	assert.Equal(t, core.KindValidation, core.KindOf(err))
}

func TestClient_TeacherRoles(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"status":{"success":true},"result":[
			{"ORG_TEACHER_ROLE_ID":7,"ROLE_CODE":"T","ROLE_NAME":"Maths","SUB_ID":"M1","TECH_FIRST_NAME":"Asha","TECH_LAST_NAME":"Rao"}]}`)
	})

	roles, err := c.TeacherRoles(context.Background(), testIdentity)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, core.FlexString("7"), roles[0].RoleID)
	assert.Equal(t, "Asha Rao", roles[0].TeacherName())

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, http.MethodGet, call.method)
	assert.Equal(t, "/config/communication/parent/roles", call.path)
	assert.Equal(t, map[string]string{
		"schoolDB": "hccs", "parentid": "4411", "divName": "A", "className": "V", "sectionName": "Primary",
	}, call.query)
}

func TestClient_envelope(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantKind   core.ErrorKind
		wantStatus int
		wantMsg    string
	}{
		{name: "ok", status: 200, body: `{"result":[]}`},
		{name: "ok without result", status: 200, body: `{"status":{"success":true}}`},
		{
			name: "success false", status: 200, body: `{"status":{"success":false,"errorMessage":"school closed"}}`,
			wantKind: core.KindServer, wantMsg: "error school closed",
		},
		{
			name: "validation failed", status: 200, body: `{"status":{"validationFailed":true,"validationErrorMessage":"bad parent"}}`,
			wantKind: core.KindServer, wantMsg: "Validation error bad parent",
		},
		{
			name: "response code", status: 200, body: `{"ResponseCode":"500","ResponseMsg":"Database down"}`,
			wantKind: core.KindServer, wantMsg: "Error :Database down",
		},
		{name: "2xx response code", status: 200, body: `{"ResponseCode":201,"result":[]}`},
		{
			name: "http error with status", status: 400, body: `{"status":{"success":false,"errorMessage":"missing schoolDB"}}`,
			wantKind: core.KindServer, wantStatus: 400, wantMsg: "missing schoolDB",
		},
		{
			name: "http error without envelope", status: 502, body: `Bad Gateway`,
			wantKind: core.KindServer, wantStatus: 502, wantMsg: "Backend API not responded correctly status :502",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			_, err := c.Communications(context.Background(), testIdentity, "open")
			if tt.wantKind == core.KindUnknown {
				require.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantKind, core.KindOf(err))
			var srvErr *core.ServerError
			require.ErrorAs(t, err, &srvErr)
			assert.Equal(t, tt.wantMsg, srvErr.Message)
			assert.Equal(t, tt.wantStatus, srvErr.StatusCode)
		})
	}
}

func TestClient_unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewClient(core.APIConfig{GatewayBaseURL: srv.URL, Timeout: time.Second}, nil)

	_, err := c.RecentPayments(context.Background(), testIdentity)
	assert.Equal(t, core.KindNetwork, core.KindOf(err))
}

func TestClient_Communications(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"result":[{"ORG_COMMUNICATION_MASTER_ID":31,"SUBJECT":"Homework","ROLE_NAME":"Maths"}]}`)
	})

	list, err := c.Communications(context.Background(), testIdentity, " Closed ")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, core.FlexString("31"), list[0].ID)
	assert.Equal(t, "closed", (*calls)[0].query["status"])

	_, err = c.Communications(context.Background(), testIdentity, "archived")
	assert.Equal(t, core.KindValidation, core.KindOf(err))
	assert.Len(t, *calls, 1, "invalid statuses never reach the service")
}

func TestClient_Messages(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"result":{"header":{"IS_ACTIVE":"N"},"detail":[
			{"ORG_COMMUNICATION_DETAIL_ID":1,"TEACHER_ID":9,"TECH_FIRST_NAME":"Asha","MESSAGE":"Hello"},
			{"ORG_COMMUNICATION_DETAIL_ID":2,"MESSSGE":"Thanks"}]}}`)
	})

	thread, err := c.Messages(context.Background(), testIdentity, "31")
	require.NoError(t, err)
	assert.False(t, thread.Active)
	assert.Equal(t, []Message{
		{ID: "1", TeacherID: "9", Sender: "Asha", Text: "Hello"},
		{ID: "2", Text: "Thanks", FromParent: true},
	}, thread.Messages)
	assert.Equal(t, "31", (*calls)[0].query["communicationID"])
}

func TestClient_SendMessage(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"status":{"success":true},"result":[{"ORG_COMMUNICATION_DETAIL_ID":3,"MESSAGE":"See you"}]}`)
	})
	ctx := context.Background()

	sent, err := c.SendMessage(ctx, testIdentity, "31", "  See you ")
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, "See you", sent[0].Text)

	call := (*calls)[0]
	assert.Equal(t, http.MethodPost, call.method)
	assert.Equal(t, "/config/communication/sendMessage", call.path)
	assert.Equal(t, map[string]interface{}{"schoolDB": "hccs", "communicationID": float64(31), "msg": "See you"}, call.body)

	t.Run("blank", func(t *testing.T) {
		_, err := c.SendMessage(ctx, testIdentity, "31", "   ")
		assert.Equal(t, core.KindValidation, core.KindOf(err))
		assert.EqualError(t, err, "Please write some message first")
	})
	t.Run("bad id", func(t *testing.T) {
		_, err := c.SendMessage(ctx, testIdentity, "x", "hi")
		assert.Equal(t, core.KindValidation, core.KindOf(err))
	})
	assert.Len(t, *calls, 1)
}

func TestClient_StartCommunication(t *testing.T) {
	tests := []struct {
		name      string
		role      TeacherRole
		subject   string
		message   string
		wantErr   bool
		wantSubID string
	}{
		{name: "teacher role", role: TeacherRole{RoleID: "7", RoleCode: "T", SubjectID: "M1"}, subject: "PTA", message: "Hi", wantSubID: "M1"},
		{name: "other role", role: TeacherRole{RoleID: "8", RoleCode: "P", SubjectID: "M1"}, subject: "PTA", message: "Hi", wantSubID: "NA"},
		{name: "no subject", role: TeacherRole{RoleID: "7"}, message: "Hi", wantErr: true},
		{name: "no message", role: TeacherRole{RoleID: "7"}, subject: "PTA", wantErr: true},
		{name: "bad role id", role: TeacherRole{RoleID: "x"}, subject: "PTA", message: "Hi", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, `{"status":{"success":true}}`)
			})

			err := c.StartCommunication(context.Background(), testIdentity, tt.role, tt.subject, tt.message)
			if (err != nil) != tt.wantErr {
				t.Fatalf("StartCommunication() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				assert.Empty(t, *calls)
				return
			}
			require.Len(t, *calls, 1)
			body := (*calls)[0].body
			assert.Equal(t, tt.wantSubID, body["subID"])
			assert.Equal(t, float64(4411), body["parentid"])
			assert.Equal(t, "PTA", body["messageSubject"])
		})
	}
}

func TestClient_fees(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fees/getAcademicYear":
			writeJSON(w, http.StatusOK, `{"ResponseCode":"200","acedemicYearList":["2024-25","2023-24"]}`)
		case "/config/payment/recentPayments":
			writeJSON(w, http.StatusOK, `{"result":[{"PAYMENT_ID":"P1","AMOUNT":1500,"STATE_NAME":"SUCCESS"}]}`)
		case "/config/payment/init":
			writeJSON(w, http.StatusOK, `{"status":{"success":true},"result":98765}`)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	years, err := c.AcademicYears(ctx, testIdentity)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-25", "2023-24"}, years.Years)
	assert.Equal(t, map[string]interface{}{"feesDbName": "hccs_fees", "pId": "4411"}, (*calls)[0].body)

	payments, err := c.RecentPayments(ctx, testIdentity)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, core.FlexString("1500"), payments[0].Amount)
	assert.Equal(t, "hccs_fees", (*calls)[1].query["schoolDB"])

	_, err = c.InitPayment(ctx, testIdentity, PaymentRequest{})
	assert.Equal(t, core.KindValidation, core.KindOf(err))

	handoff, err := c.InitPayment(ctx, testIdentity, PaymentRequest{
		Transactions: []json.RawMessage{json.RawMessage(`{"feesDbName":"hccs_fees","feesDetails":[]}`)},
	})
	require.NoError(t, err)
	assert.Equal(t, "98765", handoff.PaymentID)
	assert.Contains(t, handoff.StartURL, "/config/payment/start?")
	assert.Contains(t, handoff.StartURL, "paymentID=98765")
	assert.Contains(t, handoff.StartURL, "parentID=4411")
	assert.Contains(t, handoff.StartURL, "requester=AndroidApp")
	assert.Equal(t, "AndroidApp", (*calls)[2].query["requester"])

	assert.True(t, handoff.IsClose(handoff.CloseURL+"?msg=Payment+successful"))
	assert.False(t, handoff.IsClose(handoff.StartURL))
	assert.Equal(t, "Payment successful", handoff.ResultMessage(handoff.CloseURL+"?msg=Payment+successful"))
}

func TestClient_FeeConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
		year string
		want FeeConfig
	}{
		{
			name: "split groups",
			year: " 2024-2025 ",
			body: `{"result":{"COMMUNICATION_PARENT":"Y","COMMUNICATION_TEACHER":"N","FEE_BIFURCATION":"Y",
				"FEE_BIFURCATION_GROUP_NAME":"Tuition, Transport,","ONLINE_FEE":"Y","ONLINE_FEE_MESSAGE":"Pay by 10th",
				"PENDING_FEE":4500,"PREV_YEAR_FEES":"2023-2024"}}`,
			want: FeeConfig{
				ParentCommunication:  "Y",
				TeacherCommunication: "N",
				BifurcationRequired:  true,
				BifurcationGroups:    []string{"Tuition", "Transport"},
				OnlineFee:            "Y",
				OnlineFeeMessage:     "Pay by 10th",
				PendingFee:           "4500",
				PrevYearFees:         "2023-2024",
				CurrentYear:          "2024-2025",
				BaseYear:             2023,
			},
		},
		{
			name: "no previous year",
			year: "2024-2025",
			body: `{"result":{"FEE_BIFURCATION":"N","PREV_YEAR_FEES":""}}`,
			want: FeeConfig{BifurcationGroups: []string{}, CurrentYear: "2024-2025"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, tt.body)
			})

			got, err := c.FeeConfig(context.Background(), testIdentity, tt.year)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			require.Len(t, *calls, 1)
			call := (*calls)[0]
			assert.Equal(t, http.MethodGet, call.method)
			assert.Equal(t, "/config/student/config", call.path)
			assert.Equal(t, map[string]string{
				"dbName": "hccs_fees", "schoolDB": "hccs", "parentID": "4411",
				"className": "V", "divName": "A", "sessionYear": "2024-2025",
			}, call.query)
		})
	}

	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := c.FeeConfig(context.Background(), testIdentity, " ")
	assert.Equal(t, core.KindValidation, core.KindOf(err))
	assert.Empty(t, *calls)
}

func TestClient_Receipts(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"receiptList":[
			{"receiptNo":"R-1","amountPaid":1500,"feesDate":"01-04-2024","academicYear":"2024-2025","receiptURL":"https://fees/r1.pdf"},
			{"receiptNo":"R-2","amountPaid":900,"feesDate":"01-04-2023","academicYear":"2023-2024","receiptURL":"https://fees/r2.pdf"},
			{"receiptNo":"R-3","amountPaid":300,"feesDate":"05-04-2024","receiptURL":"https://fees/r3.pdf"}]}`)
	})
	id := testIdentity
	id.SSOName, id.SSOPass = "parent", "secret"

	tests := []struct {
		name string
		year string
		want []core.FlexString
	}{
		{name: "one year", year: "2024-2025", want: []core.FlexString{"R-1", "R-3"}},
		{name: "all years", year: "", want: []core.FlexString{"R-1", "R-2", "R-3"}},
		{name: "unknown year", year: "2019-2020", want: []core.FlexString{"R-3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			receipts, err := c.Receipts(context.Background(), id, tt.year)
			require.NoError(t, err)
			got := make([]core.FlexString, 0, len(receipts))
			for _, r := range receipts {
				got = append(got, r.ReceiptNo)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	call := (*calls)[0]
	assert.Equal(t, "/fees/getPaymentReceipts", call.path)
	assert.Equal(t, map[string]interface{}{
		"feesDbName": "hccs_fees", "pId": "4411", "ssoName": "parent", "ssoPass": "secret",
	}, call.body)
}

func TestClient_Receipts_failure(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"status":{"success":false,"errorMessage":"sso login failed"}}`)
	})

	_, err := c.Receipts(context.Background(), testIdentity, "2024-2025")
	require.Error(t, err)
	assert.Equal(t, core.KindServer, core.KindOf(err))
}
