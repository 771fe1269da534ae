package eventbus

// Topic names an event stream on the bus
type Topic string

// Topics published by the engine
const (
	TopicContainerUpdated  Topic = "container-updated"
	TopicContainerDeleted  Topic = "container-deleted"
	TopicDeploymentUpdated Topic = "deployment-updated"
	TopicDeploymentDeleted Topic = "deployment-deleted"
	TopicServiceUpdated    Topic = "service-updated"
	TopicServiceDeleted    Topic = "service-deleted"
	TopicDevModeCommand    Topic = "dev-mode-command"
	TopicDevModeStatus     Topic = "dev-mode-status"
	TopicCamelStatus       Topic = "camel-status"
	TopicContainerLog      Topic = "container-log"
	TopicSystemReady       Topic = "system-ready"
)

// StatusTopics are the topics relayed to push subscribers
var StatusTopics = []Topic{
	TopicContainerUpdated,
	TopicContainerDeleted,
	TopicDeploymentUpdated,
	TopicDeploymentDeleted,
	TopicServiceUpdated,
	TopicServiceDeleted,
	TopicDevModeStatus,
	TopicCamelStatus,
	TopicContainerLog,
}
