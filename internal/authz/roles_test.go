package authz

import "testing"

func TestCheckPermission_Table(t *testing.T) {
	expected := map[Role][]Permission{
		RoleOwner: allPermissions,
		RoleManager: {
			PermEditProject, PermViewProject, PermCreateTask, PermEditTask, PermDeleteTask,
			PermViewTask, PermAssignTask, PermUpdateTaskStatus, PermAddMember, PermViewAnalytics,
		},
		RoleDeveloper: {PermViewProject, PermCreateTask, PermViewTask, PermUpdateTaskStatus},
		RoleViewer:    {PermViewProject, PermViewTask},
	}

	for role, granted := range expected {
		want := newPermissionSet(granted...)
		for _, p := range allPermissions {
			_, ok := want[p]
			if got := CheckPermission(role, p); got != ok {
				t.Errorf("CheckPermission(%q, %q) = %v, expected %v", role, p, got, ok)
			}
		}
	}
}

func TestCheckPermission_UnknownRole(t *testing.T) {
	for _, role := range []Role{"", "admin", "guest"} {
		for _, p := range allPermissions {
			if CheckPermission(role, p) {
				t.Errorf("CheckPermission(%q, %q) should be false", role, p)
			}
		}
	}
}

func TestCheckPermission_CaseInsensitive(t *testing.T) {
	tests := []struct {
		role Role
		perm Permission
		want bool
	}{
		{"MANAGER", PermAssignTask, true},
		{"Developer", PermCreateTask, true},
		{"Viewer", PermCreateTask, false},
		{"OWNER", PermDeleteProject, true},
	}

	for _, tt := range tests {
		if got := CheckPermission(tt.role, tt.perm); got != tt.want {
			t.Errorf("CheckPermission(%q, %q) = %v, expected %v", tt.role, tt.perm, got, tt.want)
		}
	}
}

func TestCheckPermission_UnknownPermission(t *testing.T) {
	if CheckPermission(RoleOwner, "launch_rockets") {
		t.Error("unknown permission should never be granted")
	}
}

func TestCheckPermission_Idempotent(t *testing.T) {
	for _, role := range Roles() {
		for _, p := range allPermissions {
			if CheckPermission(role, p) != CheckPermission(role, p) {
				t.Errorf("CheckPermission(%q, %q) is not stable", role, p)
			}
		}
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
		ok   bool
	}{
		{"owner", RoleOwner, true},
		{" Manager ", RoleManager, true},
		{"DEVELOPER", RoleDeveloper, true},
		{"viewer", RoleViewer, true},
		{"admin", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseRole(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseRole(%q) = (%q, %v), expected (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestPermissionsFor(t *testing.T) {
	if got := len(PermissionsFor(RoleOwner)); got != 15 {
		t.Errorf("owner should hold 15 permissions, got %d", got)
	}
	viewer := PermissionsFor(RoleViewer)
	if len(viewer) != 2 || viewer[0] != PermViewProject || viewer[1] != PermViewTask {
		t.Errorf("PermissionsFor(viewer) = %v", viewer)
	}
	if got := PermissionsFor("nobody"); len(got) != 0 {
		t.Errorf("PermissionsFor(unknown) = %v, expected empty", got)
	}
}
