// Package progress estimates completion time and builds progress bar
// segments for a form.
package progress

import (
	"fmt"
	"math"

	"landform/internal/form"
	"landform/internal/validation"
)

const (
	defaultFieldSeconds  = 15
	welcomeScreenSeconds = 10
)

var fieldSeconds = map[form.FieldType]int{
	form.FieldShortText:      15,
	form.FieldLongText:       45,
	form.FieldEmail:          12,
	form.FieldPhoneNumber:    15,
	form.FieldWebsite:        12,
	form.FieldMultipleChoice: 10,
	form.FieldPictureChoice:  12,
	form.FieldDropdown:       12,
	form.FieldYesNo:          5,
	form.FieldRanking:        20,
	form.FieldRating:         8,
	form.FieldOpinionScale:   8,
	form.FieldNPS:            8,
	form.FieldAddress:        60,
	form.FieldContactInfo:    45,
	form.FieldDate:           10,
	form.FieldNumber:         10,
	form.FieldSlider:         8,
	form.FieldSignature:      30,
	form.FieldFileUpload:     20,
	form.FieldPayment:        60,
	form.FieldStatement:      5,
	form.FieldLegal:          15,
	form.FieldGroup:          0,
	form.FieldMatrix:         30,
}

// FieldSeconds is the time budget for one field of the given type.
func FieldSeconds(t form.FieldType) int {
	if s, ok := fieldSeconds[t]; ok {
		return s
	}
	return defaultFieldSeconds
}

// Estimate returns the seconds needed to fill the whole form, including
// reading the welcome screens.
func Estimate(content *form.Content) int {
	if content == nil {
		return 0
	}
	total := 0
	for _, f := range content.Fields {
		total += FieldSeconds(f.Type)
	}
	return total + len(content.WelcomeScreens)*welcomeScreenSeconds
}

// Remaining sums the budget of fields that have no answer yet.
func Remaining(content *form.Content, answers form.Answers) int {
	if content == nil {
		return 0
	}
	total := 0
	for _, f := range content.Fields {
		if _, ok := answers[f.Ref]; ok {
			continue
		}
		total += FieldSeconds(f.Type)
	}
	return total
}

// Format renders seconds as "About 30 sec" or "About 2 min".
func Format(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("About %d sec", int(math.Round(float64(seconds)/10))*10)
	}
	return fmt.Sprintf("About %d min", int(math.Round(float64(seconds)/60)))
}

type Segment struct {
	Index     int    `json:"index"`
	FieldRef  string `json:"fieldRef"`
	Completed bool   `json:"completed"`
	Current   bool   `json:"current"`
}

// Segments returns one segment per field. currentField is the field index
// (not the sequence index) under the cursor, or -1.
func Segments(content *form.Content, answers form.Answers, currentField int) []Segment {
	if content == nil {
		return nil
	}
	out := make([]Segment, 0, len(content.Fields))
	for i, f := range content.Fields {
		out = append(out, Segment{
			Index:     i,
			FieldRef:  f.Ref,
			Completed: !validation.IsEmpty(answers[f.Ref]),
			Current:   i == currentField,
		})
	}
	return out
}
