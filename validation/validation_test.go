package validation

import (
	"errors"
	"strings"
	"testing"

	"todo-api/domain"
)

func TestValidateJSON(t *testing.T) {
	v := MustNew()
	tests := []struct {
		name      string
		kind      Kind
		payload   string
		wantField string
		wantErr   bool
	}{
		{name: "list ok", kind: ListCreate, payload: `{"name":"Groceries","description":"weekly"}`},
		{name: "list missing name", kind: ListCreate, payload: `{}`, wantErr: true, wantField: "name"},
		{name: "list blank name", kind: ListCreate, payload: `{"name":"   "}`, wantErr: true, wantField: "name"},
		{name: "list long name", kind: ListCreate, payload: `{"name":"` + strings.Repeat("x", 101) + `"}`, wantErr: true, wantField: "name"},
		{name: "list update empty", kind: ListUpdate, payload: `{}`},
		{name: "list update long description", kind: ListUpdate, payload: `{"description":"` + strings.Repeat("d", 501) + `"}`, wantErr: true, wantField: "description"},
		{name: "task ok", kind: TaskCreate, payload: `{"title":"Milk","deadline":"2024-12-30T00:00:00"}`},
		{name: "task wrong type", kind: TaskCreate, payload: `{"title":"Milk","completed":"yes"}`, wantErr: true, wantField: "completed"},
		{name: "task update title too long", kind: TaskUpdate, payload: `{"title":"` + strings.Repeat("t", 201) + `"}`, wantErr: true, wantField: "title"},
		{name: "register ok", kind: UserRegister, payload: `{"username":"alice","email":"alice@example.com","password":"secret1"}`},
		{name: "register short username", kind: UserRegister, payload: `{"username":"al","email":"alice@example.com","password":"secret1"}`, wantErr: true, wantField: "username"},
		{name: "register bad email", kind: UserRegister, payload: `{"username":"alice","email":"alice@localhost","password":"secret1"}`, wantErr: true, wantField: "email"},
		{name: "register short password", kind: UserRegister, payload: `{"username":"alice","email":"alice@example.com","password":"12345"}`, wantErr: true, wantField: "password"},
		{name: "password change missing new", kind: PasswordChange, payload: `{"current_password":"secret1"}`, wantErr: true, wantField: "new_password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateJSON(tt.kind, []byte(tt.payload))
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.wantField {
				t.Fatalf("field = %q, want %q (%v)", ve.Field, tt.wantField, err)
			}
		})
	}
}

func TestValidateMalformedJSON(t *testing.T) {
	err := MustNew().ValidateJSON(ListCreate, []byte(`{"name":`))
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestValidateStruct(t *testing.T) {
	v := MustNew()
	payload := struct {
		Title string `json:"title"`
	}{Title: ""}
	if err := v.Validate(TaskCreate, payload); err == nil {
		t.Fatalf("expected empty title to fail")
	}
	payload.Title = "Bread"
	if err := v.Validate(TaskCreate, payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateUnknownKind(t *testing.T) {
	if err := MustNew().ValidateJSON(Kind("nope"), []byte(`{}`)); err == nil {
		t.Fatalf("expected unknown kind to fail")
	}
}

func TestPointerToPath(t *testing.T) {
	tests := map[string]string{
		"":               "",
		"/name":          "name",
		"#/lists/0/name": "lists[0].name",
		"/a~1b/c~0d":     "a/b.c~d",
	}
	for in, want := range tests {
		if got := pointerToPath(in); got != want {
			t.Fatalf("pointerToPath(%q) = %q, want %q", in, got, want)
		}
	}
}
