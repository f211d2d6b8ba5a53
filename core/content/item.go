package content

import (
	"bytes"
	"encoding/json"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/schoolconnect/core"
)

// Kind is the item discriminator as sent by the backend (`type`).
type Kind string

const (
	KindAlert    Kind = "alert"
	KindCircular Kind = "circular"
	KindHomework Kind = "classwork"
	KindMoment   Kind = "photos"
)

type (
	Attachment struct {
		FileName string `json:"fileName"`
		FilePath string `json:"filePath"`
		FileSize string `json:"fileSize"`
		FileType string `json:"fileType"`
	}

	// Body is the variant part of an Item: *Alert, *Circular, *Homework or *Moment.
	Body interface {
		kind() Kind
		id() string
	}

	Alert struct {
		TransID string
		Message string
	}

	Circular struct {
		TransID     string
		Subject     string
		Description string
	}

	Homework struct {
		TransID        string
		WorkType       string
		Subject        string
		Description    string
		SubmittedFiles []Attachment
	}

	Moment struct {
		AlbumID     string
		Title       string
		Description string
		Photos      []Attachment
	}

	// Item is one content entry. Common fields are resolved once at parse time;
	// Body is nil for unknown kinds. The raw JSON is kept and is what Item encodes to.
	Item struct {
		Kind        Kind
		RawDate     string
		Date        time.Time
		Sender      string
		Title       string
		Description string
		Attachments []Attachment
		MessageID   string
		ID          string
		Body        Body

		raw json.RawMessage
	}
)

func (*Alert) kind() Kind    { return KindAlert }
func (*Circular) kind() Kind { return KindCircular }
func (*Homework) kind() Kind { return KindHomework }
func (*Moment) kind() Kind   { return KindMoment }

func (b *Alert) id() string    { return b.TransID }
func (b *Circular) id() string { return b.TransID }
func (b *Homework) id() string { return b.TransID }
func (b *Moment) id() string   { return b.AlbumID }

type (
	wireAttachment struct {
		FileName  core.FlexString `json:"fileName"`
		FilePath  core.FlexString `json:"filePath"`
		FileSize  core.FlexString `json:"fileSize"`
		FileType  core.FlexString `json:"fileType"`
		ImageName core.FlexString `json:"imageName"`
		ImageLoc  core.FlexString `json:"imageLoc"`
	}

	// wireAttachments ignores anything that is not an array.
	wireAttachments []wireAttachment

	wireItem struct {
		Type             core.FlexString `json:"type"`
		SentDate         core.FlexString `json:"sentDate"`
		StartDate        core.FlexString `json:"startDate"`
		SenderName       core.FlexString `json:"senderName"`
		SentBy           core.FlexString `json:"sentBy"`
		Subject          core.FlexString `json:"subject"`
		Description      core.FlexString `json:"description"`
		AlertTransID     core.FlexString `json:"alertTransId"`
		AlertMessage     core.FlexString `json:"alertMessage"`
		CircularTransID  core.FlexString `json:"circularTransId"`
		ClassWorkTransID core.FlexString `json:"classWorkTransId"`
		ClassWorkType    core.FlexString `json:"classWorkType"`
		SubmitedFile     wireAttachments `json:"submitedFile"`
		AlbumID          core.FlexString `json:"albumId"`
		AlbumTitle       core.FlexString `json:"albumTitle"`
		AlbumDesc        core.FlexString `json:"albumDesc"`
		Photos           wireAttachments `json:"photos"`
		Attachments      wireAttachments `json:"attachments"`
		MessageID        core.FlexString `json:"messageID"`
		ID               core.FlexString `json:"id"`
	}
)

func (a *wireAttachments) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '[' {
		*a = nil
		return nil
	}
	var list []wireAttachment
	if err := json.Unmarshal(b, &list); err != nil {
		*a = nil
		return nil
	}
	*a = list
	return nil
}

func (a wireAttachments) files() []Attachment {
	out := make([]Attachment, 0, len(a))
	for _, w := range a {
		att := Attachment{
			FileName: string(w.FileName),
			FilePath: string(w.FilePath),
			FileSize: string(w.FileSize),
			FileType: string(w.FileType),
		}
		if att.FileName == "" {
			att.FileName = string(w.ImageName)
		}
		if att.FilePath == "" {
			att.FilePath = string(w.ImageLoc)
		}
		if att.FileName == "" && att.FilePath == "" {
			continue
		}
		out = append(out, att)
	}
	return out
}

// ParseItem decodes one backend content item.
func ParseItem(raw json.RawMessage) (Item, error) {
	var w wireItem
	if err := json.Unmarshal(raw, &w); err != nil {
		return Item{}, errors.Wrap(err, "decoding content item")
	}

	it := Item{
		Kind:      Kind(w.Type),
		RawDate:   core.FirstNonEmpty(string(w.SentDate), string(w.StartDate)),
		Sender:    core.FirstNonEmpty(string(w.SenderName), string(w.SentBy), "School"),
		MessageID: string(w.MessageID),
		ID:        string(w.ID),
		raw:       append(json.RawMessage{}, raw...),
	}
	it.Date = ParseDate(it.RawDate)

	submitted := w.SubmitedFile.files()
	photos := w.Photos.files()
	switch it.Kind {
	case KindAlert:
		it.Body = &Alert{TransID: string(w.AlertTransID), Message: string(w.AlertMessage)}
		it.Title = core.FirstNonEmpty(string(w.AlertMessage), "Alert")
		it.Description = string(w.AlertMessage)
	case KindCircular:
		it.Body = &Circular{TransID: string(w.CircularTransID), Subject: string(w.Subject), Description: string(w.Description)}
		it.Title = core.FirstNonEmpty(string(w.Subject), "Circular")
		it.Description = string(w.Description)
	case KindHomework:
		it.Body = &Homework{
			TransID:        string(w.ClassWorkTransID),
			WorkType:       string(w.ClassWorkType),
			Subject:        string(w.Subject),
			Description:    string(w.Description),
			SubmittedFiles: submitted,
		}
		it.Title = core.FirstNonEmpty(string(w.Subject), string(w.Description), "Homework")
		it.Description = string(w.Description)
	case KindMoment:
		it.Body = &Moment{
			AlbumID:     string(w.AlbumID),
			Title:       string(w.AlbumTitle),
			Description: string(w.AlbumDesc),
			Photos:      photos,
		}
		it.Title = core.FirstNonEmpty(string(w.AlbumTitle), string(w.AlbumDesc), "Moments")
		it.Description = string(w.AlbumDesc)
	default:
		it.Title = core.FirstNonEmpty(string(w.Subject), "Content")
		it.Description = string(w.Description)
	}

	atts := w.Attachments.files()
	atts = append(atts, submitted...)
	atts = append(atts, photos...)
	it.Attachments = atts
	return it, nil
}

// Key is the deduplication identity: kind | id | date.
// The id comes from the item's own variant field, then messageID, then id; an item
// carrying none of them is identified by a hash of its raw JSON.
func (it Item) Key() string {
	var id string
	if it.Body != nil {
		id = it.Body.id()
	}
	if id == "" {
		id = core.FirstNonEmpty(it.MessageID, it.ID)
	}
	if id == "" {
		h := fnv.New64a()
		_, _ = h.Write(it.raw)
		id = "#" + strconv.FormatUint(h.Sum64(), 16)
	}
	return string(it.Kind) + "|" + id + "|" + it.RawDate
}

// Raw returns the item as received.
func (it Item) Raw() json.RawMessage {
	return it.raw
}

func (it Item) MarshalJSON() ([]byte, error) {
	if len(it.raw) == 0 {
		return []byte("null"), nil
	}
	return it.raw, nil
}

func (it *Item) UnmarshalJSON(b []byte) error {
	parsed, err := ParseItem(b)
	if err != nil {
		return err
	}
	*it = parsed
	return nil
}
