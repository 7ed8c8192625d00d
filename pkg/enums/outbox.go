package enums

// OutboxEventType names a domain event queued for publication.
type OutboxEventType string

const (
	EventMemberActivated   OutboxEventType = "member.activated"
	EventDonationCompleted OutboxEventType = "donation.completed"
	EventOrderCompleted    OutboxEventType = "order.completed"
	EventRecordExpired     OutboxEventType = "record.expired"
)

// OutboxAggregateType names the entity an outbox event is anchored to.
type OutboxAggregateType string

const (
	AggregateMember   OutboxAggregateType = "member"
	AggregateDonation OutboxAggregateType = "donation"
	AggregateOrder    OutboxAggregateType = "store_order"
)
