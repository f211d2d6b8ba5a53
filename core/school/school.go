package school

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

const (
	StatusSuccess = "success"

	// FetchDateLayout is the backend's date-time layout for lastFetchDate.
	FetchDateLayout = "2006-01-02 15:04:05"

	Yes = "Y"
	No  = "N"
)

type (
	// LoginRequest is the body of validateLoginOptimized. Every field is a string on the wire.
	LoginRequest struct {
		AlbumID           string `json:"albumId"`
		AppVersion        string `json:"appVersion"`
		DeviceKey         string `json:"deviceKey"`
		DeviceType        string `json:"deviceType"`
		LastFetchDateFlag string `json:"lastFetchDateFlag"`
		FirstCall         string `json:"firstCall"`
		Password          string `json:"password"`
		Source            string `json:"source"`
		UserName          string `json:"userName"`
		LastFetchDate     string `json:"lastFetchDate"`
		Offset            string `json:"offset"`
		Limit             string `json:"limit"`
		Filter            string `json:"filter,omitempty"`
	}

	// LoginResponse keeps the status fields, the raw content items and every other key as profile data.
	LoginResponse struct {
		LoginStatus string
		ResultMsg   string
		List        []json.RawMessage
		Profile     map[string]json.RawMessage
	}

	// Backend is the content/auth endpoint.
	Backend interface {
		// Probe checks that at least one backend host answers.
		Probe(ctx context.Context) error
		ValidateLogin(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	}
)

// NewLoginRequest fills the per-call fields; device & app metadata are left to the Backend.
// `page` is a page counter: the item offset sent is page*limit.
func NewLoginRequest(username, password string, page, limit int, filter string, firstCall bool, now time.Time) LoginRequest {
	fc := No
	if firstCall {
		fc = Yes
	}
	return LoginRequest{
		AlbumID:           "0",
		LastFetchDateFlag: Yes,
		FirstCall:         fc,
		Password:          strings.TrimSpace(password),
		UserName:          strings.TrimSpace(username),
		LastFetchDate:     now.Format(FetchDateLayout),
		Offset:            strconv.Itoa(page * limit),
		Limit:             strconv.Itoa(limit),
		Filter:            filter,
	}
}

func (r *LoginResponse) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	*r = LoginResponse{}
	r.LoginStatus = rawString(fields["loginStatus"])
	r.ResultMsg = rawString(fields["resultMsg"])
	if list, ok := fields["LIST"]; ok && string(list) != "null" {
		if err := json.Unmarshal(list, &r.List); err != nil {
			return err
		}
		if r.List == nil {
			r.List = []json.RawMessage{}
		}
	}
	delete(fields, "loginStatus")
	delete(fields, "resultMsg")
	delete(fields, "LIST")
	r.Profile = fields
	return nil
}

func (r LoginResponse) MarshalJSON() ([]byte, error) {
	fields := make(map[string]interface{}, len(r.Profile)+3)
	for k, v := range r.Profile {
		fields[k] = v
	}
	fields["loginStatus"] = r.LoginStatus
	fields["resultMsg"] = r.ResultMsg
	if r.List != nil {
		fields["LIST"] = r.List
	}
	return json.Marshal(fields)
}

func (r LoginResponse) Succeeded() bool {
	return r.LoginStatus == StatusSuccess
}

// HasList reports whether the response embeds a content page (possibly empty).
func (r LoginResponse) HasList() bool {
	return r.List != nil
}

// ProfileString returns a profile field as a string; numbers are formatted, anything else is "".
func (r LoginResponse) ProfileString(key string) string {
	return rawString(r.Profile[key])
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
