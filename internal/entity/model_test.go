package entity

import "testing"

func TestDefaultModel(t *testing.T) {
	tests := []struct {
		name   string
		models []Model
		want   string
		wantOK bool
	}{
		{
			name: "flagged default wins",
			models: []Model{
				{Name: "a", Enabled: true},
				{Name: "b", Enabled: true, IsDefault: true},
			},
			want:   "b",
			wantOK: true,
		},
		{
			name: "disabled default is skipped",
			models: []Model{
				{Name: "a", Enabled: true},
				{Name: "b", IsDefault: true},
			},
			want:   "a",
			wantOK: true,
		},
		{
			name: "falls back to first enabled",
			models: []Model{
				{Name: "a"},
				{Name: "b", Enabled: true},
			},
			want:   "b",
			wantOK: true,
		},
		{
			name:   "nothing enabled",
			models: []Model{{Name: "a"}},
			wantOK: false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := DefaultModel(tc.models)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if ok && got.Name != tc.want {
				t.Errorf("DefaultModel = %q, want %q", got.Name, tc.want)
			}
		})
	}
}

func TestDefaultVoice(t *testing.T) {
	voices := []Voice{
		{Name: "nova", Enabled: true},
		{Name: "sage", Enabled: true, IsDefault: true},
	}
	got, ok := DefaultVoice(voices)
	if !ok || got.Name != "sage" {
		t.Errorf("DefaultVoice = %q, %v; want sage, true", got.Name, ok)
	}
}

func TestSkillDefaultsFillsCatalogDescription(t *testing.T) {
	s := SkillDefaults(Skill{Name: "web_search"})
	if s.Description == nil || *s.Description != KnownSkills["web_search"] {
		t.Errorf("description = %v, want catalog entry", s.Description)
	}

	custom := "my own"
	kept := SkillDefaults(Skill{Name: "web_search", Description: &custom})
	if *kept.Description != "my own" {
		t.Error("explicit description overwritten")
	}

	unknown := SkillDefaults(Skill{Name: "quantum_leap"})
	if unknown.Description != nil {
		t.Error("unknown skill should keep nil description")
	}
}
