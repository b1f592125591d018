package rbac

const (
	PermExamTake        = "exam:take"
	PermExamViewAll     = "exam:view-all"
	PermQuestionsImport = "questions:import"
	PermUsersManage     = "users:manage"
)

// RolePermissions is the default policy.
var RolePermissions = map[string][]string{
	"student": {
		PermExamTake,
	},
	"teacher": {
		PermExamViewAll,
		"questions:*",
	},
	"admin": {
		"*", // everything
	},
}
