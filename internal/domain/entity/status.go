package entity

// Estados de Dispatch.
const (
	DispatchPending    = "PENDING"
	DispatchProcessing = "PROCESSING"
	DispatchCompleted  = "COMPLETED"
	DispatchDelivered  = "DELIVERED"
	DispatchCancelled  = "CANCELLED"
)

// Estados de Return.
const (
	ReturnReceived  = "RECEIVED"
	ReturnInspected = "INSPECTED"
	ReturnClosed    = "CLOSED"
)

// Estados de Damage.
const (
	DamageReported   = "REPORTED"
	DamageVerified   = "VERIFIED"
	DamageWrittenOff = "WRITTEN_OFF"
)

// Estados de Recovery.
const (
	RecoveryRecovered = "RECOVERED"
	RecoveryVerified  = "VERIFIED"
)

// Estados de SelfTransfer. DELIVERED no existe para traslados.
const (
	TransferInTransit = "IN_TRANSIT"
	TransferReceived  = "RECEIVED"
	TransferCancelled = "CANCELLED"
)

// StatusMachine conjunto finito de estados de un tipo de registro y sus transiciones válidas.
type StatusMachine struct {
	Initial     string
	transitions map[string][]string
}

// Valid informa si el estado pertenece al conjunto del tipo de registro.
func (m StatusMachine) Valid(status string) bool {
	if status == m.Initial {
		return true
	}
	for from, tos := range m.transitions {
		if from == status {
			return true
		}
		for _, to := range tos {
			if to == status {
				return true
			}
		}
	}
	return false
}

// CanTransition informa si from → to está permitido.
func (m StatusMachine) CanTransition(from, to string) bool {
	for _, s := range m.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// StatusMachines por SourceType. opening_stock no tiene estados editables.
var StatusMachines = map[string]StatusMachine{
	SourceDispatch: {
		Initial: DispatchPending,
		transitions: map[string][]string{
			DispatchPending:    {DispatchProcessing, DispatchCancelled},
			DispatchProcessing: {DispatchCompleted, DispatchCancelled},
			DispatchCompleted:  {DispatchDelivered, DispatchCancelled},
		},
	},
	SourceReturn: {
		Initial: ReturnReceived,
		transitions: map[string][]string{
			ReturnReceived:  {ReturnInspected},
			ReturnInspected: {ReturnClosed},
		},
	},
	SourceDamage: {
		Initial: DamageReported,
		transitions: map[string][]string{
			DamageReported: {DamageVerified},
			DamageVerified: {DamageWrittenOff},
		},
	},
	SourceRecovery: {
		Initial: RecoveryRecovered,
		transitions: map[string][]string{
			RecoveryRecovered: {RecoveryVerified},
		},
	},
	SourceSelfTransfer: {
		Initial: TransferInTransit,
		transitions: map[string][]string{
			TransferInTransit: {TransferReceived, TransferCancelled},
		},
	},
}
