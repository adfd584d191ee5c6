package graph

// Operand positions of UNIDIRECTIONAL_SEQUENCE_LSTM.
const (
	LSTMInput = iota
	LSTMInputToInput
	LSTMInputToForget
	LSTMInputToCell
	LSTMInputToOutput
	LSTMRecurrentToInput
	LSTMRecurrentToForget
	LSTMRecurrentToCell
	LSTMRecurrentToOutput
	LSTMCellToInput
	LSTMCellToForget
	LSTMCellToOutput
	LSTMInputGateBias
	LSTMForgetBias
	LSTMCellBias
	LSTMOutputBias
	LSTMProjectionWeights
	LSTMProjectionBias
	LSTMOutputState
	LSTMCellState
	LSTMInputLayerNorm
	LSTMForgetLayerNorm
	LSTMCellLayerNorm
	LSTMOutputLayerNorm

	// LSTMOperandCount is the fixed operand list length.
	LSTMOperandCount
)
