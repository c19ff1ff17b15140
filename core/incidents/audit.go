package incidents

const (
	AuditIncidentCreate      = "incident.create"
	AuditIncidentFile        = "incident.file.add"
	AuditIncidentFileDelete  = "incident.file.delete"
	AuditIncidentState       = "incident.state"
	AuditIncidentAssign      = "incident.assign"
	AuditIncidentTitle       = "incident.title.update"
	AuditIncidentDescription = "incident.description.update"
	AuditIncidentLocation    = "incident.location.update"
	AuditIncidentParties     = "incident.parties.update"
	AuditIncidentDate        = "incident.incident_at.update"
	AuditIncidentSeverity    = "incident.severity.update"
	AuditIncidentTags        = "incident.tags.update"
	AuditIncidentBulk        = "incident.bulk"
)
