package workflow

import "github.com/opsflow/backend/internal/domain/identity"

// StepDefinition is one entry in an order type's compiled step sequence.
// ActionLabel is the contextual button text shown by clients.
type StepDefinition struct {
	Key         string
	Title       string
	ActionLabel string
	Role        identity.OperationalRole
	Required    bool
}

// registry maps each order type to its ordered step sequence. The mapping is
// static; changing it only affects orders created afterwards.
var registry = map[OrderType][]StepDefinition{
	OrderTypeAgentRestock: {
		{Key: StepAssembleItems, Title: "Assemble requested items", ActionLabel: "Mark assembled", Role: identity.RoleForeman, Required: true},
		{Key: StepForemanHandover, Title: "Hand over to delivery", ActionLabel: "Hand over", Role: identity.RoleForeman, Required: true},
		{Key: StepDeliveryReceived, Title: "Confirm goods received from foreman", ActionLabel: "Confirm received", Role: identity.RoleDelivery, Required: true},
		{Key: StepDeliverItems, Title: "Deliver items to destination", ActionLabel: "Mark delivered", Role: identity.RoleDelivery, Required: true},
		{Key: StepConfirmReceived, Title: "Confirm delivery received", ActionLabel: "Confirm delivery", Role: identity.RoleRequester, Required: true},
	},
	OrderTypeStoreKeeperRestock: {
		{Key: StepAssembleItems, Title: "Assemble requested items", ActionLabel: "Mark assembled", Role: identity.RoleForeman, Required: true},
		{Key: StepForemanHandover, Title: "Hand over to delivery", ActionLabel: "Hand over", Role: identity.RoleForeman, Required: true},
		{Key: StepDeliveryReceived, Title: "Confirm goods received from foreman", ActionLabel: "Confirm received", Role: identity.RoleDelivery, Required: true},
		{Key: StepDeliverItems, Title: "Deliver items to destination", ActionLabel: "Mark delivered", Role: identity.RoleDelivery, Required: true},
		{Key: StepConfirmReceived, Title: "Confirm delivery received", ActionLabel: "Confirm delivery", Role: identity.RoleRequester, Required: true},
	},
	OrderTypeCustomerWholesale: {
		{Key: StepAssembleItems, Title: "Assemble wholesale items", ActionLabel: "Mark assembled", Role: identity.RoleForeman, Required: true},
		{Key: StepForemanHandover, Title: "Hand over to delivery", ActionLabel: "Hand over", Role: identity.RoleForeman, Required: true},
		{Key: StepDeliveryReceived, Title: "Confirm goods received from foreman", ActionLabel: "Confirm received", Role: identity.RoleDelivery, Required: true},
		{Key: StepDeliverItems, Title: "Deliver items to customer", ActionLabel: "Mark delivered", Role: identity.RoleDelivery, Required: true},
	},
	OrderTypeAgentRetail: {
		{Key: StepAcceptDelivery, Title: "Accept retail delivery request", ActionLabel: "Accept", Role: identity.RoleDelivery, Required: true},
		{Key: StepDeliverItems, Title: "Deliver items to customer", ActionLabel: "Mark delivered", Role: identity.RoleDelivery, Required: true},
	},
}

// stepsByRole maps a fulfilment role to the workflow step keys its
// assignments are allowed to drive.
var stepsByRole = map[identity.OperationalRole][]string{
	identity.RoleForeman:   {StepAssembleItems, StepForemanHandover},
	identity.RoleDelivery:  {StepDeliveryReceived, StepDeliverItems, StepAcceptDelivery},
	identity.RoleRequester: {StepConfirmReceived},
}

// StepsFor returns the step sequence for an order type
func StepsFor(orderType OrderType) []StepDefinition {
	return registry[orderType]
}

// KnownOrderTypes lists every registered order type
func KnownOrderTypes() []OrderType {
	types := make([]OrderType, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	return types
}

// AllowedStepsForRole returns the step keys a role's assignment may complete
func AllowedStepsForRole(role identity.OperationalRole) []string {
	return stepsByRole[role]
}

// RoleAllowsStep reports whether the role may drive the given step key
func RoleAllowsStep(role identity.OperationalRole, stepKey string) bool {
	for _, key := range stepsByRole[role] {
		if key == stepKey {
			return true
		}
	}
	return false
}
