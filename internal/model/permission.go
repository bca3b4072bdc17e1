package model

// Permission names checked by route guards. Migrate seeds this catalogue
// into m_permission.
const (
	PermGuestRead        = "guest.read"
	PermGuestCreate      = "guest.create"
	PermGuestUpdate      = "guest.update"
	PermGuestDelete      = "guest.delete"
	PermInOutRead        = "inout.read"
	PermInOutManage      = "inout.manage"
	PermRoomRead         = "room.read"
	PermRoomManage       = "room.manage"
	PermRoomAssign       = "room.assign"
	PermAssignmentRead   = "assignment.read"
	PermAssignmentManage = "assignment.manage"
	PermMasterRead       = "master.read"
	PermMasterManage     = "master.manage"
	PermUserRead         = "user.read"
	PermUserManage       = "user.manage"
	PermRoleRead         = "role.read"
	PermRoleManage       = "role.manage"
	PermReportRead       = "report.read"
	PermReportExport     = "report.export"
	PermActivityRead     = "activity.read"
)

// PermissionCatalogue lists every permission with a short description.
var PermissionCatalogue = []struct{ Name, Description string }{
	{PermGuestRead, "View guests"},
	{PermGuestCreate, "Create guests"},
	{PermGuestUpdate, "Edit guests and designations"},
	{PermGuestDelete, "Deactivate guests"},
	{PermInOutRead, "View guest visits"},
	{PermInOutManage, "Schedule and move guest visits"},
	{PermRoomRead, "View rooms"},
	{PermRoomManage, "Create and edit rooms"},
	{PermRoomAssign, "Assign, change and vacate guest rooms"},
	{PermAssignmentRead, "View resource assignments"},
	{PermAssignmentManage, "Assign, edit and close resource assignments"},
	{PermMasterRead, "View master data"},
	{PermMasterManage, "Edit master data"},
	{PermUserRead, "View users"},
	{PermUserManage, "Create and edit users"},
	{PermRoleRead, "View roles and permissions"},
	{PermRoleManage, "Edit roles and toggle permissions"},
	{PermReportRead, "View reports"},
	{PermReportExport, "Export reports"},
	{PermActivityRead, "View the activity log"},
}
