package model

import (
	"reflect"
	"strings"
	"testing"
)

// Registration pre-checks alone cannot stop concurrent duplicates, so the
// identity columns must carry unique indexes at the schema level.
func TestUserIdentityColumnsUnique(t *testing.T) {
	userType := reflect.TypeOf(User{})
	for _, name := range []string{"Username", "Email"} {
		field, ok := userType.FieldByName(name)
		if !ok {
			t.Fatalf("User has no field %s", name)
		}
		if !strings.Contains(field.Tag.Get("gorm"), "uniqueIndex") {
			t.Fatalf("User.%s gorm tag %q lacks uniqueIndex", name, field.Tag.Get("gorm"))
		}
	}
}
