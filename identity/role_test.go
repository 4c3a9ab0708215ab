package identity

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRoleHierarchy(t *testing.T) {
	cases := []struct {
		role Role
		min  Role
		want bool
	}{
		{RoleOwner, RoleAdmin, true},
		{RoleOwner, RoleOwner, true},
		{RoleAdmin, RoleOwner, false},
		{RoleAdmin, RoleUser, true},
		{RoleUser, RoleAdmin, false},
		{roleInvalid, RoleUser, false},
		{RoleUser, roleInvalid, false},
	}
	for _, tc := range cases {
		if got := tc.role.AtLeast(tc.min); got != tc.want {
			t.Fatalf("%s.AtLeast(%s) = %v, want %v", tc.role, tc.min, got, tc.want)
		}
	}
}

func TestParseRole(t *testing.T) {
	for in, want := range map[string]Role{"user": RoleUser, " Admin ": RoleAdmin, "OWNER": RoleOwner} {
		got, err := ParseRole(in)
		if err != nil || got != want {
			t.Fatalf("ParseRole(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseRole("root"); err == nil {
		t.Fatal("expected unknown role to be rejected")
	}
}

func TestRoleJSONRoundTripByName(t *testing.T) {
	raw, err := json.Marshal(struct {
		Role Role `json:"role"`
	}{RoleAdmin})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"role":"admin"}` {
		t.Fatalf("unexpected encoding %s", raw)
	}

	var decoded struct {
		Role Role `json:"role"`
	}
	if err := json.Unmarshal([]byte(`{"role":"superuser"}`), &decoded); err == nil {
		t.Fatal("expected unknown role name to fail decoding")
	}
}

func TestUserCloneIsDeep(t *testing.T) {
	now := time.Now()
	u := &User{
		Username:    "alice",
		Role:        RoleUser,
		Permissions: []Permission{{Resource: "favorites", Actions: []Action{ActionRead}}},
		LoginTime:   &now,
		Tags:        []string{"vip"},
	}
	c := u.Clone()
	c.Permissions[0].Actions[0] = ActionManage
	c.Tags[0] = "changed"
	*c.LoginTime = now.Add(time.Hour)

	if u.Permissions[0].Actions[0] != ActionRead || u.Tags[0] != "vip" || !u.LoginTime.Equal(now) {
		t.Fatal("clone shares state with the original")
	}
}

func TestStringsDeduplicates(t *testing.T) {
	got := Strings([]Permission{
		{Resource: "favorites", Actions: []Action{ActionRead, ActionWrite}},
		{Resource: "favorites", Actions: []Action{ActionRead}},
		{Resource: "*", Actions: []Action{ActionManage}},
	})
	want := []string{"favorites:read", "favorites:write", "*:manage"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}
