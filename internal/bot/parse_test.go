package bot

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"tyres_bot/internal/model"
)

func TestParseSetArgs(t *testing.T) {
	tests := []struct {
		name      string
		args      string
		wantField string
		wantValue string
		wantErr   bool
	}{
		{name: "simple", args: "width 195", wantField: "width", wantValue: "195"},
		{name: "multi-word value", args: "title michelin alpin", wantField: "title", wantValue: "michelin alpin"},
		{name: "extra spaces", args: "  season   Зима ", wantField: "season", wantValue: "Зима"},
		{name: "missing value", args: "width", wantErr: true},
		{name: "blank value", args: "width   ", wantErr: true},
		{name: "empty", args: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			field, value, err := ParseSetArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.wantField, field); diff != "" {
				t.Errorf("field mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantValue, value); diff != "" {
				t.Errorf("value mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseIDArg(t *testing.T) {
	tests := []struct {
		name    string
		args    string
		want    string
		wantErr bool
	}{
		{name: "object id", args: "64f1c2a9e13b5c0012345678", want: "64f1c2a9e13b5c0012345678"},
		{name: "trailing words", args: "abc extra", want: "abc"},
		{name: "padded", args: "  abc  ", want: "abc"},
		{name: "empty", args: "", wantErr: true},
		{name: "whitespace", args: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIDArg(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseIDArg mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseLoginArgs(t *testing.T) {
	tests := []struct {
		name      string
		args      string
		wantEmail string
		wantPass  string
		wantErr   bool
	}{
		{name: "valid", args: "me@example.com s3cret", wantEmail: "me@example.com", wantPass: "s3cret"},
		{name: "missing password", args: "me@example.com", wantErr: true},
		{name: "too many parts", args: "me@example.com a b", wantErr: true},
		{name: "not an email", args: "me s3cret", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email, pass, err := ParseLoginArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.wantEmail, email); diff != "" {
				t.Errorf("email mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantPass, pass); diff != "" {
				t.Errorf("password mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseDraftArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    string
		want    model.Draft
		wantErr bool
	}{
		{
			name: "single",
			args: "price=2500",
			want: model.Draft{"price": "2500"},
		},
		{
			name: "multi-word values",
			args: "brand=Nokian model=Hakkapeliitta R5 description=Один сезон, без латок",
			want: model.Draft{"brand": "Nokian", "model": "Hakkapeliitta R5", "description": "Один сезон, без латок"},
		},
		{
			name: "equals inside value",
			args: "description=size 205/55 = as new",
			want: model.Draft{"description": "size 205/55 = as new"},
		},
		{
			name: "empty value clears",
			args: "treadPercent=",
			want: model.Draft{"treadPercent": ""},
		},
		{name: "unknown field", args: "colour=black", wantErr: true},
		{name: "value without field", args: "Nokian price=1", wantErr: true},
		{name: "empty", args: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDraftArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("draft mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
