package entity

import (
	"testing"

	"github.com/archos-hq/archos/pkg/resource"
)

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
		wantErr  bool
	}{
		{"every five minutes", "*/5 * * * *", false},
		{"weekday morning", "0 9 * * 1-5", false},
		{"list field", "0 0,12 * * *", false},
		{"too few fields", "* * * *", true},
		{"too many fields", "* * * * * *", true},
		{"stray character", "* * * * mon", true},
		{"empty", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSchedule(tc.schedule)
			if (err != nil) != tc.wantErr {
				t.Errorf("ValidateSchedule(%q) = %v, wantErr %v", tc.schedule, err, tc.wantErr)
			}
		})
	}
}

func TestValidateCronJob(t *testing.T) {
	good := CronJob{Name: "nightly backup", Schedule: "0 3 * * *", Command: "backup --all"}
	if err := ValidateCronJob(good); err != nil {
		t.Fatalf("ValidateCronJob: %v", err)
	}

	bad := CronJob{Schedule: "whenever"}
	err := ValidateCronJob(bad)
	if !resource.IsValidation(err) {
		t.Fatalf("ValidateCronJob = %v, want validation error", err)
	}
}

func TestCronLessGroupsBySchedule(t *testing.T) {
	a := CronJob{Name: "b", Schedule: "0 3 * * *"}
	b := CronJob{Name: "a", Schedule: "0 9 * * *"}
	if !CronLess(a, b) {
		t.Error("earlier schedule string should sort first")
	}

	c := CronJob{Name: "a", Schedule: "0 3 * * *"}
	if !CronLess(c, a) {
		t.Error("name should break schedule ties")
	}
}
