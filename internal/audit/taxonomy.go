package audit

// Canonical classification tables. Severity and category are always derived
// here, never assigned per call site, so two emitters of the same action can
// never disagree.

// actionCategories maps each action to its category.
var actionCategories = map[Action]Category{
	ActionCreate: CategoryData,
	ActionUpdate: CategoryData,
	ActionDelete: CategoryData,
	ActionImport: CategoryData,
	ActionLogin:  CategorySecurity,
	ActionLogout: CategorySecurity,
	ActionExport: CategoryCompliance,
	ActionCustom: CategorySystem,
}

// actionSeverities maps actions whose severity is not the info default.
// Deletes are destructive and always warrant review.
var actionSeverities = map[Action]Severity{
	ActionDelete: SeverityWarning,
}

// CategoryOf returns the canonical category for an action.
// Unknown actions default to CategorySystem.
func CategoryOf(action Action) Category {
	if cat, ok := actionCategories[action]; ok {
		return cat
	}
	return CategorySystem
}

// SeverityOf returns the canonical severity for an action.
// Unknown actions default to SeverityInfo.
func SeverityOf(action Action) Severity {
	if sev, ok := actionSeverities[action]; ok {
		return sev
	}
	return SeverityInfo
}

// securitySeverities maps security event types to their default severity.
var securitySeverities = map[SecurityEventType]Severity{
	SecurityLoginFailed:      SeverityWarning,
	SecurityPermissionDenied: SeverityWarning,
	SecuritySessionAnomaly:   SeverityCritical,
	SecurityLockout:          SeverityCritical,
	SecurityLogin:            SeverityInfo,
	SecurityLogout:           SeverityInfo,
}

// SecuritySeverityOf returns the default severity for a security event type.
// Unknown types default to SeverityWarning: an unclassified security event is
// worth a look.
func SecuritySeverityOf(eventType SecurityEventType) Severity {
	if sev, ok := securitySeverities[eventType]; ok {
		return sev
	}
	return SeverityWarning
}

// validActions is the allowlist for normalization.
var validActions = map[Action]bool{
	ActionCreate: true,
	ActionUpdate: true,
	ActionDelete: true,
	ActionLogin:  true,
	ActionLogout: true,
	ActionExport: true,
	ActionImport: true,
	ActionCustom: true,
}

// IsValid checks whether the action is one of the supported enum values.
func (a Action) IsValid() bool {
	return validActions[a]
}
