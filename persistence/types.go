package persistence

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type Section struct {
	ID         int64  `msgpack:"id" json:"id"`
	Name       string `msgpack:"name" json:"name"`
	Identifier string `msgpack:"identifier" json:"identifier"`
}

type ContentInfo struct {
	ID               int64     `msgpack:"id" json:"id"`
	ContentTypeID    int64     `msgpack:"content_type_id" json:"content_type_id"`
	SectionID        int64     `msgpack:"section_id" json:"section_id"`
	Name             string    `msgpack:"name" json:"name"`
	RemoteID         string    `msgpack:"remote_id" json:"remote_id"`
	MainLanguageCode string    `msgpack:"main_language_code" json:"main_language_code"`
	MainLocationID   int64     `msgpack:"main_location_id" json:"main_location_id"`
	CurrentVersionNo int       `msgpack:"current_version_no" json:"current_version_no"`
	Published        time.Time `msgpack:"published" json:"published"`
	Modified         time.Time `msgpack:"modified" json:"modified"`
}

type Field struct {
	DefinitionID int64  `msgpack:"definition_id" json:"definition_id"`
	Identifier   string `msgpack:"identifier" json:"identifier"`
	LanguageCode string `msgpack:"language_code" json:"language_code"`
	Value        string `msgpack:"value" json:"value"`
}

type Content struct {
	Info      ContentInfo `msgpack:"info" json:"info"`
	VersionNo int         `msgpack:"version_no" json:"version_no"`
	Languages []string    `msgpack:"languages" json:"languages"`
	Fields    []Field     `msgpack:"fields" json:"fields"`
}

type Location struct {
	ID         int64  `msgpack:"id" json:"id"`
	ParentID   int64  `msgpack:"parent_id" json:"parent_id"`
	ContentID  int64  `msgpack:"content_id" json:"content_id"`
	Depth      int    `msgpack:"depth" json:"depth"`
	PathString string `msgpack:"path_string" json:"path_string"`
	Priority   int    `msgpack:"priority" json:"priority"`
	Hidden     bool   `msgpack:"hidden" json:"hidden"`
	RemoteID   string `msgpack:"remote_id" json:"remote_id"`
}

// Path returns the ids in PathString, root first and the location itself
// last. Malformed elements are skipped.
func (l *Location) Path() []int64 {
	parts := strings.Split(strings.Trim(l.PathString, "/"), "/")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}

// BuildPathString returns the path string of a child of parentPath.
func BuildPathString(parentPath string, id int64) string {
	if parentPath == "" {
		parentPath = "/"
	}
	return parentPath + strconv.FormatInt(id, 10) + "/"
}

var (
	identifierRule = validation.Match(regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_\-]*$`))
	languageRule   = validation.Match(regexp.MustCompile(`^[a-z]{2,3}-[A-Z]{2}$`))
)

// ValidateSection checks the arguments of section create and update.
func ValidateSection(name, identifier string) error {
	return validation.Errors{
		"name":       validation.Validate(name, validation.Required, validation.Length(1, 255)),
		"identifier": validation.Validate(identifier, validation.Required, validation.Length(1, 255), identifierRule),
	}.Filter()
}

type ContentCreateStruct struct {
	ContentTypeID    int64
	SectionID        int64
	Name             string
	RemoteID         string
	MainLanguageCode string
	Fields           []Field
}

func (s ContentCreateStruct) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ContentTypeID, validation.Required, validation.Min(int64(1))),
		validation.Field(&s.SectionID, validation.Required, validation.Min(int64(1))),
		validation.Field(&s.Name, validation.Required),
		validation.Field(&s.RemoteID, validation.Length(0, 100)),
		validation.Field(&s.MainLanguageCode, validation.Required, languageRule),
		validation.Field(&s.Fields, validation.Each(validation.By(validateField))),
	)
}

// ValidateFields checks a non-empty field list for updates.
func ValidateFields(fields []Field) error {
	return validation.Validate(fields, validation.Required, validation.Each(validation.By(validateField)))
}

func validateField(v interface{}) error {
	f, _ := v.(Field)
	return validation.ValidateStruct(&f,
		validation.Field(&f.DefinitionID, validation.Required),
		validation.Field(&f.LanguageCode, validation.Required, languageRule),
	)
}

// MetadataUpdateStruct changes content metadata. Zero fields are left
// unchanged.
type MetadataUpdateStruct struct {
	Name             string
	RemoteID         string
	MainLanguageCode string
	MainLocationID   int64
	Published        time.Time
}

func (s MetadataUpdateStruct) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.RemoteID, validation.Length(0, 100)),
		validation.Field(&s.MainLanguageCode, languageRule),
		validation.Field(&s.MainLocationID, validation.Min(int64(0))),
	)
}

type LocationCreateStruct struct {
	ParentID  int64
	ContentID int64
	RemoteID  string
	Priority  int
	Hidden    bool
}

func (s LocationCreateStruct) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ParentID, validation.Min(int64(0))),
		validation.Field(&s.ContentID, validation.Required, validation.Min(int64(1))),
		validation.Field(&s.RemoteID, validation.Length(0, 100)),
	)
}

// LocationUpdateStruct replaces the mutable location properties. An empty
// RemoteID keeps the current one.
type LocationUpdateStruct struct {
	Priority int
	Hidden   bool
	RemoteID string
}

func (s LocationUpdateStruct) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.RemoteID, validation.Length(0, 100)),
	)
}
