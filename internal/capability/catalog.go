package capability

// Valid pairs, named so in-code checks are compile-time safe.
var (
	UserCreate = must(UserManagement, Create)
	UserRead   = must(UserManagement, Read)
	UserUpdate = must(UserManagement, Update)
	UserDelete = must(UserManagement, Delete)
	UserManage = must(UserManagement, Manage)

	RoleCreate = must(RoleManagement, Create)
	RoleRead   = must(RoleManagement, Read)
	RoleUpdate = must(RoleManagement, Update)
	RoleDelete = must(RoleManagement, Delete)
	RoleManage = must(RoleManagement, Manage)

	GroupCreate = must(GroupManagement, Create)
	GroupRead   = must(GroupManagement, Read)
	GroupUpdate = must(GroupManagement, Update)
	GroupDelete = must(GroupManagement, Delete)
	GroupManage = must(GroupManagement, Manage)

	LeadCreate  = must(LeadManagement, Create)
	LeadRead    = must(LeadManagement, Read)
	LeadUpdate  = must(LeadManagement, Update)
	LeadDelete  = must(LeadManagement, Delete)
	LeadManage  = must(LeadManagement, Manage)
	LeadConvert = must(LeadManagement, Convert)
	LeadImport  = must(LeadManagement, Import)
	LeadExport  = must(LeadManagement, Export)

	AccountCreate = must(AccountManagement, Create)
	AccountRead   = must(AccountManagement, Read)
	AccountUpdate = must(AccountManagement, Update)
	AccountDelete = must(AccountManagement, Delete)
	AccountManage = must(AccountManagement, Manage)
	AccountImport = must(AccountManagement, Import)
	AccountExport = must(AccountManagement, Export)

	ContactCreate      = must(ContactManagement, Create)
	ContactRead        = must(ContactManagement, Read)
	ContactUpdate      = must(ContactManagement, Update)
	ContactDelete      = must(ContactManagement, Delete)
	ContactManage      = must(ContactManagement, Manage)
	ContactImport      = must(ContactManagement, Import)
	ContactExport      = must(ContactManagement, Export)
	ContactMoveToLeads = must(ContactManagement, MoveToLeads)

	ActivityCreate = must(ActivityManagement, Create)
	ActivityRead   = must(ActivityManagement, Read)
	ActivityUpdate = must(ActivityManagement, Update)
	ActivityDelete = must(ActivityManagement, Delete)
	ActivityManage = must(ActivityManagement, Manage)

	ReportCreate = must(ReportManagement, Create)
	ReportRead   = must(ReportManagement, Read)
	ReportUpdate = must(ReportManagement, Update)
	ReportDelete = must(ReportManagement, Delete)
	ReportManage = must(ReportManagement, Manage)
	ReportExport = must(ReportManagement, Export)

	DataCenterCreate = must(DataCenter, Create)
	DataCenterRead   = must(DataCenter, Read)
	DataCenterUpdate = must(DataCenter, Update)
	DataCenterDelete = must(DataCenter, Delete)
	DataCenterManage = must(DataCenter, Manage)
	DataCenterImport = must(DataCenter, Import)
	DataCenterExport = must(DataCenter, Export)
)
