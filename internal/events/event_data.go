package events

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// StrategyAddedData contains data for StrategyAdded events
type StrategyAddedData struct {
	StrategyID      string `json:"strategy_id"`
	TargetWeightBps uint64 `json:"target_weight_bps"`
	TotalWeightBps  uint64 `json:"total_weight_bps"`
}

// EventType returns the event type for StrategyAddedData
func (d *StrategyAddedData) EventType() EventType {
	return StrategyAdded
}

// StrategyRemovedData contains data for StrategyRemoved events
type StrategyRemovedData struct {
	StrategyID     string `json:"strategy_id"`
	TotalWeightBps uint64 `json:"total_weight_bps"`
}

// EventType returns the event type for StrategyRemovedData
func (d *StrategyRemovedData) EventType() EventType {
	return StrategyRemoved
}

// WeightUpdatedData contains data for WeightUpdated events
type WeightUpdatedData struct {
	StrategyID     string `json:"strategy_id"`
	OldWeightBps   uint64 `json:"old_weight_bps"`
	NewWeightBps   uint64 `json:"new_weight_bps"`
	TotalWeightBps uint64 `json:"total_weight_bps"`
}

// EventType returns the event type for WeightUpdatedData
func (d *WeightUpdatedData) EventType() EventType {
	return WeightUpdated
}

// RebalanceCompletedData contains data for RebalanceCompleted events
type RebalanceCompletedData struct {
	RunID       string `json:"run_id"`
	TotalValue  uint64 `json:"total_value"`
	Withdrawals int    `json:"withdrawals"`
	Deposits    int    `json:"deposits"`
	MovedAmount uint64 `json:"moved_amount"`
}

// EventType returns the event type for RebalanceCompletedData
func (d *RebalanceCompletedData) EventType() EventType {
	return RebalanceCompleted
}

// ConfigChangedData contains data for ConfigChanged events
type ConfigChangedData struct {
	Key      string `json:"key"`
	NewValue string `json:"new_value"`
}

// EventType returns the event type for ConfigChangedData
func (d *ConfigChangedData) EventType() EventType {
	return ConfigChanged
}

// SnapshotTakenData contains data for SnapshotTaken events
type SnapshotTakenData struct {
	TotalValue uint64 `json:"total_value"`
	Strategies int    `json:"strategies"`
}

// EventType returns the event type for SnapshotTakenData
func (d *SnapshotTakenData) EventType() EventType {
	return SnapshotTaken
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Key       string `json:"key"`
	SizeBytes int64  `json:"size_bytes"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}
