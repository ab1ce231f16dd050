package types

import (
	"encoding/json"
	"testing"
)

func TestUserKeepsUnknownMembers(t *testing.T) {
	var u User
	in := `{"id":3,"username":"carol","role_id":1,"bio":"hi","email":"","tags":["a","b"]}`
	if err := json.Unmarshal([]byte(in), &u); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if u.ID != 3 || u.Username != "carol" || !u.IsAdmin() {
		t.Fatalf("typed fields = %+v", u)
	}
	for _, key := range []string{"bio", "email", "tags"} {
		if _, ok := u.Extra[key]; !ok {
			t.Errorf("Extra is missing %q", key)
		}
	}
	if _, ok := u.Extra["id"]; ok {
		t.Error("Extra holds a typed member")
	}

	out, err := json.Marshal(&u)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var got, want map[string]any
	_ = json.Unmarshal(out, &got)
	_ = json.Unmarshal([]byte(in), &want)
	if len(got) != len(want) {
		t.Fatalf("Marshal() = %s, want the members of %s", out, in)
	}
	for k := range want {
		if _, ok := got[k]; !ok {
			t.Errorf("Marshal() dropped %q: %s", k, out)
		}
	}
}

func TestUserTypedFieldOverridesExtra(t *testing.T) {
	var u User
	if err := json.Unmarshal([]byte(`{"id":1,"username":"alice","role_id":2,"email":null}`), &u); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	u.Email = "alice@example.com"

	out, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var got map[string]any
	_ = json.Unmarshal(out, &got)
	if got["email"] != "alice@example.com" {
		t.Errorf("email = %v, want alice@example.com", got["email"])
	}
}

func TestUserCloneCopiesExtra(t *testing.T) {
	u := &User{ID: 1, Username: "alice", Extra: map[string]json.RawMessage{"bio": json.RawMessage(`"hi"`)}}

	c := u.Clone()
	c.Extra["bio"] = json.RawMessage(`"changed"`)
	c.Username = "bob"

	if string(u.Extra["bio"]) != `"hi"` || u.Username != "alice" {
		t.Errorf("Clone() shares state with the original: %+v", u)
	}
	if (*User)(nil).Clone() != nil {
		t.Error("Clone() of nil should be nil")
	}
}
