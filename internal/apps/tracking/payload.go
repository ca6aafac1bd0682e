package tracking

import (
	"encoding/json"
	"mime/multipart"
	"strings"

	"github.com/ahmetcoskunkizilkaya/cycletrack-backend/internal/validation"
	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
)

type CreateCourseRequest struct {
	Name        string            `json:"name" validate:"required,max=255"`
	Description *string           `json:"description"`
	StartDate   validation.Date   `json:"startDate" validate:"required"`
	EndDate     validation.Date   `json:"endDate"`
	Status      string            `json:"status" validate:"omitempty,max=20"`
	CourseType  string            `json:"courseType" validate:"required,max=100"`
	TotalWeeks  validation.Number `json:"totalWeeks" validate:"omitempty,integer,gt=0"`
	CurrentWeek validation.Number `json:"currentWeek" validate:"omitempty,integer,gt=0"`
}

func (r *CreateCourseRequest) toCourse(userID string) *Course {
	course := &Course{
		UserID:      userID,
		Name:        r.Name,
		Description: r.Description,
		StartDate:   datatypes.Date(r.StartDate.Day()),
		Status:      r.Status,
		CourseType:  r.CourseType,
		TotalWeeks:  r.TotalWeeks.IntPtr(),
		CurrentWeek: r.CurrentWeek.Int(),
	}
	if r.EndDate.Valid {
		end := datatypes.Date(r.EndDate.Day())
		course.EndDate = &end
	}
	return course
}

// UpdateCourseRequest is a partial update; absent or null fields are kept.
// currentWeek is not patchable.
type UpdateCourseRequest struct {
	Name        *string           `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string           `json:"description"`
	StartDate   validation.Date   `json:"startDate"`
	EndDate     validation.Date   `json:"endDate"`
	Status      *string           `json:"status" validate:"omitempty,min=1,max=20"`
	CourseType  *string           `json:"courseType" validate:"omitempty,min=1,max=100"`
	TotalWeeks  validation.Number `json:"totalWeeks" validate:"omitempty,integer,gt=0"`
}

func (r *UpdateCourseRequest) toUpdate() CourseUpdate {
	u := CourseUpdate{
		Name:        r.Name,
		Description: r.Description,
		Status:      r.Status,
		CourseType:  r.CourseType,
		TotalWeeks:  r.TotalWeeks.IntPtr(),
	}
	if r.StartDate.Valid {
		d := r.StartDate.Day()
		u.StartDate = &d
	}
	if r.EndDate.Valid {
		d := r.EndDate.Day()
		u.EndDate = &d
	}
	return u
}

type CreateCompoundRequest struct {
	CompoundName   string            `json:"compoundName" validate:"required,max=255"`
	DosageAmount   validation.Number `json:"dosageAmount" validate:"required"`
	DosageUnit     string            `json:"dosageUnit" validate:"required,max=50"`
	Frequency      validation.Number `json:"frequency" validate:"required,integer"`
	InjectionSites []string          `json:"injectionSites"`
	StartWeek      validation.Number `json:"startWeek" validate:"omitempty,integer,gt=0"`
	EndWeek        validation.Number `json:"endWeek" validate:"omitempty,integer,gt=0"`
}

func (r *CreateCompoundRequest) toCompound(courseID uint) *CourseCompound {
	return &CourseCompound{
		CourseID:       courseID,
		CompoundName:   r.CompoundName,
		DosageAmount:   r.DosageAmount.Value,
		DosageUnit:     r.DosageUnit,
		Frequency:      r.Frequency.Int(),
		InjectionSites: datatypes.JSONSlice[string](r.InjectionSites),
		StartWeek:      r.StartWeek.Int(),
		EndWeek:        r.EndWeek.IntPtr(),
	}
}

type CreateInjectionRequest struct {
	CourseID      validation.Number `json:"courseId" validate:"omitempty,integer,gt=0"`
	CompoundName  string            `json:"compoundName" validate:"required,max=255"`
	DosageAmount  validation.Number `json:"dosageAmount" validate:"required"`
	DosageUnit    string            `json:"dosageUnit" validate:"required,max=50"`
	InjectionSite string            `json:"injectionSite" validate:"required,max=255"`
	InjectionDate validation.Date   `json:"injectionDate"`
	Notes         *string           `json:"notes"`
	PainLevel     validation.Number `json:"painLevel" validate:"omitempty,integer,min=0,max=10"`
	XPEarned      validation.Number `json:"xpEarned" validate:"omitempty,integer,min=0"`
}

func (r *CreateInjectionRequest) toInjection(userID string) *Injection {
	inj := &Injection{
		UserID:        userID,
		CourseID:      r.CourseID.UintPtr(),
		CompoundName:  r.CompoundName,
		DosageAmount:  r.DosageAmount.Value,
		DosageUnit:    r.DosageUnit,
		InjectionSite: r.InjectionSite,
		Notes:         nonEmpty(r.Notes),
		PainLevel:     r.PainLevel.IntPtr(),
		XPEarned:      r.XPEarned.Int(),
	}
	if r.InjectionDate.Valid {
		inj.InjectionDate = r.InjectionDate.Time
	}
	return inj
}

type CreateBloodTestRequest struct {
	CourseID    validation.Number      `json:"courseId" validate:"omitempty,integer,gt=0"`
	TestDate    validation.Date        `json:"testDate" validate:"required"`
	TestType    string                 `json:"testType" validate:"required,max=100"`
	Results     map[string]interface{} `json:"results" validate:"required"`
	DoctorNotes *string                `json:"doctorNotes"`
	AlertFlags  []string               `json:"alertFlags"`
	XPEarned    validation.Number      `json:"xpEarned" validate:"omitempty,integer,min=0"`
}

func (r *CreateBloodTestRequest) toBloodTest(userID string) *BloodTest {
	test := &BloodTest{
		UserID:      userID,
		CourseID:    r.CourseID.UintPtr(),
		TestDate:    datatypes.Date(r.TestDate.Day()),
		TestType:    r.TestType,
		Results:     datatypes.JSONMap(r.Results),
		DoctorNotes: nonEmpty(r.DoctorNotes),
		XPEarned:    r.XPEarned.Int(),
	}
	if r.AlertFlags != nil {
		test.AlertFlags = datatypes.JSONSlice[string](r.AlertFlags)
	}
	return test
}

type CreateProgressPhotoRequest struct {
	CourseID validation.Number `json:"courseId" validate:"omitempty,integer,gt=0"`
	BodyPart string            `json:"bodyPart" validate:"required,max=100"`
	Weight   validation.Number `json:"weight" validate:"omitempty,gt=0"`
	BodyFat  validation.Number `json:"bodyFat" validate:"omitempty,min=0,max=100"`
	Notes    *string           `json:"notes"`
	XPEarned validation.Number `json:"xpEarned" validate:"omitempty,integer,min=0"`
}

func (r *CreateProgressPhotoRequest) toProgressPhoto(userID, photoURL string) *ProgressPhoto {
	return &ProgressPhoto{
		UserID:   userID,
		CourseID: r.CourseID.UintPtr(),
		PhotoURL: photoURL,
		BodyPart: r.BodyPart,
		Weight:   r.Weight.FloatPtr(),
		BodyFat:  r.BodyFat.FloatPtr(),
		Notes:    nonEmpty(r.Notes),
		XPEarned: r.XPEarned.Int(),
	}
}

// decodePayload fills dst from a JSON body, from the "data" JSON field of a
// multipart form, or from plain form fields, and then validates it.
func decodePayload(c *fiber.Ctx, dst interface{}) error {
	contentType := strings.ToLower(string(c.Request().Header.ContentType()))

	switch {
	case strings.HasPrefix(contentType, fiber.MIMEMultipartForm):
		form, err := c.MultipartForm()
		if err != nil {
			return validation.New("", "Invalid multipart form")
		}
		if data := form.Value["data"]; len(data) > 0 {
			if err := json.Unmarshal([]byte(data[0]), dst); err != nil {
				return validation.New("data", "Invalid data field: %v", err)
			}
		} else if err := decodeFormValues(form.Value, dst); err != nil {
			return err
		}
	case strings.HasPrefix(contentType, fiber.MIMEApplicationForm):
		values := map[string][]string{}
		c.Request().PostArgs().VisitAll(func(k, v []byte) {
			values[string(k)] = append(values[string(k)], string(v))
		})
		if err := decodeFormValues(values, dst); err != nil {
			return err
		}
	default:
		if len(c.Body()) == 0 {
			return validation.New("", "Request body is required")
		}
		if err := json.Unmarshal(c.Body(), dst); err != nil {
			return validation.New("", "Invalid request body: %v", err)
		}
	}

	return validation.Struct(dst)
}

// decodeFormValues turns flat form fields into a JSON object. Values that
// look like JSON objects or arrays (results, injectionSites) are embedded raw.
func decodeFormValues(values map[string][]string, dst interface{}) error {
	obj := make(map[string]json.RawMessage, len(values))
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		v := strings.TrimSpace(vals[0])
		if (strings.HasPrefix(v, "{") || strings.HasPrefix(v, "[")) && json.Valid([]byte(v)) {
			obj[key] = json.RawMessage(v)
			continue
		}
		quoted, err := json.Marshal(vals[0])
		if err != nil {
			return validation.New(key, "Invalid value for %s", key)
		}
		obj[key] = quoted
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return validation.New("", "Invalid form")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return validation.New("", "Invalid form: %v", err)
	}
	return nil
}

// formFile returns the uploaded file for field, or nil when none was sent.
func formFile(c *fiber.Ctx, field string) *multipart.FileHeader {
	if !strings.HasPrefix(strings.ToLower(string(c.Request().Header.ContentType())), fiber.MIMEMultipartForm) {
		return nil
	}
	fh, err := c.FormFile(field)
	if err != nil {
		return nil
	}
	return fh
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
