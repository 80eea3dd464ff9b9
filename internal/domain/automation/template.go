package automation

import (
	"github.com/opsflow/backend/internal/domain/identity"
	"github.com/opsflow/backend/internal/domain/workflow"
)

// RoleTaskSpec describes one claimable role task an order trigger creates.
type RoleTaskSpec struct {
	Role  identity.OperationalRole
	Title string
}

// OrderTaskTemplate describes the automation surface an order type gets:
// one root task carrying a placeholder assignment per participating role,
// plus the initial claimable role tasks. Later role tasks (the delivery
// chain after foreman handover) are created by the engine, not the trigger.
type OrderTaskTemplate struct {
	RootTitle        string
	AssignmentRoles  []identity.OperationalRole
	InitialRoleTasks []RoleTaskSpec
}

var orderTemplates = map[workflow.OrderType]OrderTaskTemplate{
	workflow.OrderTypeAgentRestock: {
		RootTitle:       "Fulfil agent restock order",
		AssignmentRoles: []identity.OperationalRole{identity.RoleForeman, identity.RoleDelivery, identity.RoleRequester},
		InitialRoleTasks: []RoleTaskSpec{
			{Role: identity.RoleForeman, Title: "Assemble and hand over restock items"},
		},
	},
	workflow.OrderTypeStoreKeeperRestock: {
		RootTitle:       "Fulfil store keeper restock order",
		AssignmentRoles: []identity.OperationalRole{identity.RoleForeman, identity.RoleDelivery, identity.RoleRequester},
		InitialRoleTasks: []RoleTaskSpec{
			{Role: identity.RoleForeman, Title: "Assemble and hand over restock items"},
		},
	},
	workflow.OrderTypeCustomerWholesale: {
		RootTitle:       "Fulfil wholesale order",
		AssignmentRoles: []identity.OperationalRole{identity.RoleForeman, identity.RoleDelivery},
		InitialRoleTasks: []RoleTaskSpec{
			{Role: identity.RoleForeman, Title: "Assemble and hand over wholesale items"},
		},
	},
	workflow.OrderTypeAgentRetail: {
		RootTitle:       "Fulfil retail delivery",
		AssignmentRoles: []identity.OperationalRole{identity.RoleDelivery},
		InitialRoleTasks: []RoleTaskSpec{
			{Role: identity.RoleDelivery, Title: "Accept and deliver retail order"},
		},
	},
}

// TemplateFor returns the automation template for an order type
func TemplateFor(orderType workflow.OrderType) (OrderTaskTemplate, bool) {
	tpl, ok := orderTemplates[orderType]
	return tpl, ok
}
