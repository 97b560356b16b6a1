package api

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"maps"
	"mime"
	"slices"
	"strings"
	"time"

	"clm/internal/customer/models"
	dErrors "clm/pkg/domain-errors"
)

// Wire formats understood by the Translator.
const (
	FormatJSON = "json"
	FormatXML  = "xml"
)

// MaxBodyBytes caps decoded request bodies.
const MaxBodyBytes = 1 << 20

// Translator moves requests and responses between wire formats and the
// canonical models. JSON is canonical; XML carries the same fields as elements,
// with data attributes as child elements of <data>.
type Translator struct{}

func NewTranslator() *Translator {
	return &Translator{}
}

// FormatFor picks the wire format for a Content-Type or Accept value.
func FormatFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return FormatJSON
	}
	if mediaType == "application/xml" || mediaType == "text/xml" || strings.HasSuffix(mediaType, "+xml") {
		return FormatXML
	}
	return FormatJSON
}

// ContentType is the response Content-Type for format.
func ContentType(format string) string {
	if format == FormatXML {
		return "application/xml; charset=utf-8"
	}
	return "application/json"
}

// Decode reads one request in the given format.
func (t *Translator) Decode(format string, r io.Reader) (*models.Request, error) {
	body, err := io.ReadAll(io.LimitReader(r, MaxBodyBytes))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read request body")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	var req *models.Request
	switch format {
	case FormatJSON, "":
		req, err = decodeJSON(body)
		format = FormatJSON
	case FormatXML:
		req, err = decodeXML(body)
	default:
		return nil, unsupportedFormat(format)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, fmt.Sprintf("malformed %s request", format))
	}
	req.Format = format
	return req, nil
}

// Canonical returns a normalized copy of req: the action is trimmed, data is
// never nil and the format is one the translator supports.
func (t *Translator) Canonical(req *models.Request) (*models.Request, error) {
	format := req.Format
	if format == "" {
		format = FormatJSON
	}
	if format != FormatJSON && format != FormatXML {
		return nil, unsupportedFormat(format)
	}
	data := maps.Clone(req.Data)
	if data == nil {
		data = map[string]any{}
	}
	return &models.Request{
		AuthToken: req.AuthToken,
		Action:    strings.TrimSpace(req.Action),
		Data:      data,
		Format:    format,
	}, nil
}

// Encode renders resp in the given format.
func (t *Translator) Encode(format string, resp *models.Response) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		return json.Marshal(resp)
	case FormatXML:
		out, err := xml.Marshal(toXMLResponse(resp))
		if err != nil {
			return nil, err
		}
		return append([]byte(xml.Header), out...), nil
	default:
		return nil, unsupportedFormat(format)
	}
}

func unsupportedFormat(format string) error {
	return dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unsupported format %q", format))
}

func decodeJSON(body []byte) (*models.Request, error) {
	var req models.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

type xmlField struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type xmlFields struct {
	Fields []xmlField `xml:",any"`
}

type xmlRequest struct {
	XMLName   xml.Name  `xml:"request"`
	AuthToken string    `xml:"auth_token"`
	Action    string    `xml:"action"`
	Data      xmlFields `xml:"data"`
}

func decodeXML(body []byte) (*models.Request, error) {
	var in xmlRequest
	if err := xml.Unmarshal(body, &in); err != nil {
		return nil, err
	}
	data := make(map[string]any, len(in.Data.Fields))
	for _, f := range in.Data.Fields {
		name := f.XMLName.Local
		if _, dup := data[name]; dup {
			return nil, errors.New("duplicate data element " + name)
		}
		data[name] = xmlScalar(f.Value)
	}
	return &models.Request{
		AuthToken: strings.TrimSpace(in.AuthToken),
		Action:    in.Action,
		Data:      data,
	}, nil
}

// xmlScalar maps element text to the JSON value a caller would have sent.
// Only booleans are typed; identifiers stay strings.
func xmlScalar(s string) any {
	s = strings.TrimSpace(s)
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}

type xmlEvent struct {
	EventID    string    `xml:"event_id"`
	CustomerID string    `xml:"customer_id"`
	Type       string    `xml:"type"`
	Version    string    `xml:"version"`
	OccurredAt string    `xml:"occurred_at,omitempty"`
	Data       xmlFields `xml:"data"`
}

type xmlResponse struct {
	XMLName    xml.Name  `xml:"response"`
	Status     string    `xml:"status"`
	CustomerID string    `xml:"customer_id,omitempty"`
	Event      *xmlEvent `xml:"event,omitempty"`
	Message    string    `xml:"message,omitempty"`
}

func toXMLResponse(resp *models.Response) xmlResponse {
	out := xmlResponse{
		Status:     resp.Status,
		CustomerID: resp.CustomerID,
		Message:    resp.Message,
	}
	if e := resp.Event; e != nil {
		xe := &xmlEvent{
			EventID:    e.EventID,
			CustomerID: e.CustomerID,
			Type:       string(e.Type),
			Version:    e.Version,
		}
		if !e.OccurredAt.IsZero() {
			xe.OccurredAt = e.OccurredAt.UTC().Format(time.RFC3339Nano)
		}
		for _, k := range slices.Sorted(maps.Keys(e.Data)) {
			xe.Data.Fields = append(xe.Data.Fields, xmlField{
				XMLName: xml.Name{Local: k},
				Value:   fmt.Sprint(e.Data[k]),
			})
		}
		out.Event = xe
	}
	return out
}
