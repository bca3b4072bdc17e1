package service

import (
	"github.com/iliyamo/guesthouse-admin/internal/repository"
)

// ResourceSpec configures one instance of the generic assignment manager.
type ResourceSpec struct {
	repository.AssignmentTable
	Prefix string
	Label  string

	// Capacity is the number of guests one resource serves at a time.
	Capacity int

	ActiveStatus string
	ClosedStatus string
	// PendingStatus marks a request that waits for a resource. Empty when
	// the kind has no requests.
	PendingStatus string

	// BusyStatus is written to the resource when it reaches capacity and
	// FreeStatus when it drops below. Both need ResourceStatusColumn.
	BusyStatus string
	FreeStatus string

	// ReopenOnClose inserts a pending successor row when a row is closed.
	ReopenOnClose bool

	// AutoExpire rows end at 23:59:59 of their start date unless an end
	// is given, and the sweep closes them with ExpiredStatus.
	AutoExpire    bool
	ExpiredStatus string

	// StaffBacked resources take their display name from m_staff.
	StaffBacked bool
	// NameColumn is the resource column shown in reports when the
	// resource is not staff backed.
	NameColumn string
}

// ResourceSpecs lists every assignment kind, keyed by URL segment.
var ResourceSpecs = map[string]ResourceSpec{
	"driver": {
		AssignmentTable: repository.AssignmentTable{Kind: "driver", Table: "t_guest_driver", IDColumn: "driver_assignment_id",
			ResourceTable: "m_driver", ResourceIDColumn: "driver_id", ResourceStatusColumn: "status"},
		Prefix: "GD", Label: "driver", Capacity: 1,
		ActiveStatus: "Assigned", ClosedStatus: "Completed",
		BusyStatus: "On Duty", FreeStatus: "Available",
		StaffBacked: true,
	},
	"vehicle": {
		AssignmentTable: repository.AssignmentTable{Kind: "vehicle", Table: "t_guest_vehicle", IDColumn: "vehicle_assignment_id",
			ResourceTable: "m_vehicle", ResourceIDColumn: "vehicle_id", ResourceStatusColumn: "status"},
		Prefix: "GV", Label: "vehicle", Capacity: 1,
		ActiveStatus: "Assigned", ClosedStatus: "Returned",
		BusyStatus: "In Use", FreeStatus: "Available",
		NameColumn: "vehicle_no",
	},
	"butler": {
		AssignmentTable: repository.AssignmentTable{Kind: "butler", Table: "t_guest_butler", IDColumn: "butler_assignment_id",
			ResourceTable: "m_butler", ResourceIDColumn: "butler_id"},
		Prefix: "GB", Label: "butler", Capacity: 3,
		ActiveStatus: "Assigned", ClosedStatus: "Released",
		StaffBacked: true,
	},
	"network": {
		AssignmentTable: repository.AssignmentTable{Kind: "network", Table: "t_guest_network", IDColumn: "network_assignment_id",
			ResourceTable: "m_network_provider", ResourceIDColumn: "provider_id"},
		Prefix: "GN", Label: "network provider", Capacity: 1,
		ActiveStatus: "Active", ClosedStatus: "Disconnected", PendingStatus: "Requested",
		ReopenOnClose: true,
		NameColumn:    "provider_name",
	},
	"messenger": {
		AssignmentTable: repository.AssignmentTable{Kind: "messenger", Table: "t_guest_messenger", IDColumn: "messenger_assignment_id",
			ResourceTable: "m_messenger", ResourceIDColumn: "messenger_id"},
		Prefix: "GM", Label: "messenger", Capacity: 1,
		ActiveStatus: "Assigned", ClosedStatus: "Closed",
		AutoExpire: true, ExpiredStatus: "Expired",
		StaffBacked: true,
	},
	"housekeeping": {
		AssignmentTable: repository.AssignmentTable{Kind: "housekeeping", Table: "t_guest_housekeeping", IDColumn: "housekeeping_assignment_id",
			ResourceTable: "m_housekeeping", ResourceIDColumn: "housekeeping_id"},
		Prefix: "GH", Label: "housekeeping staff", Capacity: 1,
		ActiveStatus: "Assigned", ClosedStatus: "Completed",
		StaffBacked: true,
	},
}

// MasterSpec configures the generic master-data service for one table.
type MasterSpec struct {
	repository.MasterTable
	Prefix string
	Label  string
	// Required fields must be non-blank on create and may not be cleared.
	Required []string
	// ReadOnly columns are shown but only written by workflows.
	ReadOnly []string
	// AssignmentKind names the ResourceSpec whose active rows block a
	// delete. Empty when the master is not assignable.
	AssignmentKind string
}

// MasterSpecs lists every master, keyed by URL segment.
var MasterSpecs = map[string]MasterSpec{
	"drivers": {
		MasterTable: repository.MasterTable{Kind: "drivers", Table: "m_driver", IDColumn: "driver_id",
			Columns: []string{"licence_no", "licence_expiry", "status"}, StaffBacked: true},
		Prefix: "D", Label: "driver", Required: []string{"full_name"}, ReadOnly: []string{"status"},
		AssignmentKind: "driver",
	},
	"butlers": {
		MasterTable: repository.MasterTable{Kind: "butlers", Table: "m_butler", IDColumn: "butler_id",
			Columns: []string{"shift"}, StaffBacked: true},
		Prefix: "B", Label: "butler", Required: []string{"full_name"}, AssignmentKind: "butler",
	},
	"messengers": {
		MasterTable: repository.MasterTable{Kind: "messengers", Table: "m_messenger", IDColumn: "messenger_id",
			Columns: []string{"messenger_app"}, StaffBacked: true},
		Prefix: "M", Label: "messenger", Required: []string{"full_name"}, AssignmentKind: "messenger",
	},
	"liaison-officers": {
		MasterTable: repository.MasterTable{Kind: "liaison-officers", Table: "m_liaison_officer", IDColumn: "officer_id",
			Columns: []string{"department"}, StaffBacked: true},
		Prefix: "LO", Label: "liaison officer", Required: []string{"full_name"},
	},
	"medical-services": {
		MasterTable: repository.MasterTable{Kind: "medical-services", Table: "m_medical_emergency_service", IDColumn: "service_id",
			Columns: []string{"service_type", "hospital"}, StaffBacked: true},
		Prefix: "MES", Label: "medical emergency service", Required: []string{"full_name"},
	},
	"housekeeping": {
		MasterTable: repository.MasterTable{Kind: "housekeeping", Table: "m_housekeeping", IDColumn: "housekeeping_id",
			Columns: []string{"shift"}, StaffBacked: true},
		Prefix: "HK", Label: "housekeeping staff", Required: []string{"full_name"}, AssignmentKind: "housekeeping",
	},
	"vehicles": {
		MasterTable: repository.MasterTable{Kind: "vehicles", Table: "m_vehicle", IDColumn: "vehicle_id",
			Columns: []string{"vehicle_no", "model", "seats", "status"}},
		Prefix: "V", Label: "vehicle", Required: []string{"vehicle_no"}, ReadOnly: []string{"status"},
		AssignmentKind: "vehicle",
	},
	"network-providers": {
		MasterTable: repository.MasterTable{Kind: "network-providers", Table: "m_network_provider", IDColumn: "provider_id",
			Columns: []string{"provider_name", "network_type", "contact"}},
		Prefix: "NP", Label: "network provider", Required: []string{"provider_name"}, AssignmentKind: "network",
	},
}
