package chartexport

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/odonto/odonto/internal/domain/odontogram"
)

// Sheet identifies one of the two printed templates.
type Sheet string

const (
	SheetFront Sheet = "front"
	SheetBack  Sheet = "back"
)

// Sheets lists the templates in page order.
var Sheets = []Sheet{SheetFront, SheetBack}

// Text field keys.
const (
	FieldPatientName   = "patient_name"
	FieldAddress       = "address"
	FieldBirthDate     = "birth_date"
	FieldSex           = "sex"
	FieldInsurance     = "insurance"
	FieldDoctorName    = "doctor_name"
	FieldDoctorLicense = "doctor_license"
	FieldVisitDate     = "visit_date"
)

// TextField places one document value on a template, in template units.
type TextField struct {
	Key  string
	X, Y float64
	Size float64
}

// SheetLayout describes what is printed on a sheet. A nil Anchors table
// means the sheet carries no tooth marks.
type SheetLayout struct {
	Sheet   Sheet
	Anchors *AnchorTable
	Fields  []TextField
}

var sheetLayouts = map[Sheet]SheetLayout{
	SheetFront: {
		Sheet:   SheetFront,
		Anchors: FrontAnchors,
		Fields: []TextField{
			{Key: FieldPatientName, X: 140, Y: 96, Size: 11},
			{Key: FieldVisitDate, X: 780, Y: 96, Size: 11},
			{Key: FieldBirthDate, X: 140, Y: 136, Size: 10},
			{Key: FieldSex, X: 520, Y: 136, Size: 10},
			{Key: FieldAddress, X: 140, Y: 176, Size: 10},
			{Key: FieldInsurance, X: 620, Y: 176, Size: 10},
		},
	},
	SheetBack: {
		Sheet: SheetBack,
		Fields: []TextField{
			{Key: FieldPatientName, X: 140, Y: 96, Size: 11},
			{Key: FieldDoctorName, X: 140, Y: 1236, Size: 10},
			{Key: FieldDoctorLicense, X: 620, Y: 1236, Size: 10},
			{Key: FieldVisitDate, X: 140, Y: 1276, Size: 10},
		},
	},
}

// LayoutFor returns the layout of a sheet.
func LayoutFor(s Sheet) (SheetLayout, bool) {
	l, ok := sheetLayouts[s]
	return l, ok
}

// PatientInfo holds the patient fields printed on the sheets.
type PatientInfo struct {
	Name      string
	Address   string
	BirthDate string
	Sex       string
	Insurance string
}

// VisitInfo holds the visit fields and both chart layers.
type VisitInfo struct {
	DoctorName    string
	DoctorLicense string
	Date          time.Time
	Diagnosis     string
	Treatment     string
	Historical    odontogram.Chart
	Current       odontogram.Chart
}

// Document is everything one export prints.
type Document struct {
	Patient PatientInfo
	Visit   VisitInfo
}

const dateLayout = "02/01/2006"

// Field returns the printed value of a text field.
func (d Document) Field(key string) string {
	switch key {
	case FieldPatientName:
		return d.Patient.Name
	case FieldAddress:
		return d.Patient.Address
	case FieldBirthDate:
		return d.Patient.BirthDate
	case FieldSex:
		return d.Patient.Sex
	case FieldInsurance:
		return d.Patient.Insurance
	case FieldDoctorName:
		return d.Visit.DoctorName
	case FieldDoctorLicense:
		return d.Visit.DoctorLicense
	case FieldVisitDate:
		if d.Visit.Date.IsZero() {
			return ""
		}
		return d.Visit.Date.Format(dateLayout)
	}
	return ""
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// FileName is the download name of the exported document.
func (d Document) FileName(ext string) string {
	name := strings.Trim(unsafeFileChars.ReplaceAllString(strings.ToLower(d.Patient.Name), "_"), "_")
	if name == "" {
		name = "paciente"
	}
	date := "sin_fecha"
	if !d.Visit.Date.IsZero() {
		date = d.Visit.Date.Format("2006-01-02")
	}
	return fmt.Sprintf("odontograma_%s_%s.%s", name, date, ext)
}
