// Package pdg assembles the statement graph of one function: flattened
// statements with their feature records, def-use dataflow edges and the
// structural edges of the flattening.
package pdg

// Node is one statement of the graph.
type Node struct {
	SID   int        `json:"sid" msgpack:"sid"`
	Feat  Feat       `json:"feat" msgpack:"feat"`
	Debug *NodeDebug `json:"debug,omitempty" msgpack:"debug,omitempty"`
}

// Feat is the feature record of a statement. Booleans are encoded as 0/1.
type Feat struct {
	NodeTypeID string `json:"node_type_id" msgpack:"node_type_id"`

	InLoop            int     `json:"in_loop" msgpack:"in_loop"`
	IsLoop            int     `json:"is_loop" msgpack:"is_loop"`
	CtxGuardStrength  int     `json:"ctx_guard_strength" msgpack:"ctx_guard_strength"`
	CtxUpperBoundNorm float64 `json:"ctx_upper_bound_norm" msgpack:"ctx_upper_bound_norm"`
	IsBufferDecl      int     `json:"is_buffer_decl" msgpack:"is_buffer_decl"`
	BufferSizeState   int     `json:"buffer_size_state" msgpack:"buffer_size_state"`
	BufferSizeNorm    float64 `json:"buffer_size_norm" msgpack:"buffer_size_norm"`

	CallSemCatID               int `json:"call_sem_cat_id" msgpack:"call_sem_cat_id"`
	CallFlagDangerUnbounded    int `json:"call_flag_danger_unbounded" msgpack:"call_flag_danger_unbounded"`
	CallFlagLenLinkedToDst     int `json:"call_flag_len_linked_to_dst" msgpack:"call_flag_len_linked_to_dst"`
	CallFlagSizeofNonDst       int `json:"call_flag_sizeof_non_dst" msgpack:"call_flag_sizeof_non_dst"`
	CallFlagHasVarargs         int `json:"call_flag_has_varargs" msgpack:"call_flag_has_varargs"`
	CallDstIsField             int `json:"call_dst_is_field" msgpack:"call_dst_is_field"`
	CallSizeKind               int `json:"call_size_kind" msgpack:"call_size_kind"`
	CallLenLinkedToDstExtended int `json:"call_len_linked_to_dst_extended" msgpack:"call_len_linked_to_dst_extended"`
	CallSizeIsSizeofBaseStruct int `json:"call_size_is_sizeof_base_struct" msgpack:"call_size_is_sizeof_base_struct"`
	CallSizeMismatchField      int `json:"call_size_mismatch_field" msgpack:"call_size_mismatch_field"`
	AllocSizeofState           int `json:"alloc_sizeof_state" msgpack:"alloc_sizeof_state"`

	InDegreeDFG  int `json:"in_degree_dfg" msgpack:"in_degree_dfg"`
	OutDegreeDFG int `json:"out_degree_dfg" msgpack:"out_degree_dfg"`
	DefCount     int `json:"def_count" msgpack:"def_count"`
	UseCount     int `json:"use_count" msgpack:"use_count"`

	IsBufferAccess      int `json:"is_buffer_access" msgpack:"is_buffer_access"`
	IsSinkAssign        int `json:"is_sink_assign" msgpack:"is_sink_assign"`
	IsSinkCallUnbounded int `json:"is_sink_call_unbounded" msgpack:"is_sink_call_unbounded"`
	IsSinkCallBounded   int `json:"is_sink_call_bounded" msgpack:"is_sink_call_bounded"`
	CallDstIndexed      int `json:"call_dst_indexed" msgpack:"call_dst_indexed"`
	CallLenLinkedToDst  int `json:"call_len_linked_to_dst" msgpack:"call_len_linked_to_dst"`
	CallSizeNonConst    int `json:"call_size_nonconst" msgpack:"call_size_nonconst"`
	CallDangerUnbounded int `json:"call_danger_unbounded" msgpack:"call_danger_unbounded"`
}

// NodeDebug is the human-readable companion of a node.
type NodeDebug struct {
	Code    string   `json:"code" msgpack:"code"`
	DefVars []string `json:"def_vars" msgpack:"def_vars"`
	UseVars []string `json:"use_vars" msgpack:"use_vars"`
}

// Edge is a def-use dataflow edge.
type Edge struct {
	SrcSID         int        `json:"src_sid" msgpack:"src_sid"`
	DstSID         int        `json:"dst_sid" msgpack:"dst_sid"`
	FlowRole       int        `json:"flow_role" msgpack:"flow_role"`
	GuardKind      int        `json:"guard_kind" msgpack:"guard_kind"`
	HasLowerGuard  int        `json:"has_lower_guard" msgpack:"has_lower_guard"`
	HasUpperGuard  int        `json:"has_upper_guard" msgpack:"has_upper_guard"`
	UpperGuardNorm float64    `json:"upper_guard_norm" msgpack:"upper_guard_norm"`
	Debug          *EdgeDebug `json:"debug,omitempty" msgpack:"debug,omitempty"`

	// Key is the variable key. It is not encoded; decoded graphs recover it
	// from Debug when present.
	Key string `json:"-" msgpack:"-"`
}

// EdgeDebug names the variable an edge carries as "key@def_sid".
type EdgeDebug struct {
	VarKey string `json:"var_key" msgpack:"var_key"`
}

// GuardEdge is a control-dependency edge of the flattened structure.
type GuardEdge struct {
	Src         int `json:"src" msgpack:"src"`
	Dst         int `json:"dst" msgpack:"dst"`
	GuardKind   int `json:"guard_kind" msgpack:"guard_kind"`
	GuardBranch int `json:"guard_branch" msgpack:"guard_branch"`
}

// ASTEdges are the structural relations produced by flattening.
type ASTEdges struct {
	ParentChild [][2]int    `json:"parent_child" msgpack:"parent_child"`
	Sibling     [][2]int    `json:"sibling" msgpack:"sibling"`
	Guard       []GuardEdge `json:"guard" msgpack:"guard"`
}

// Graph is the complete statement graph of one function.
type Graph struct {
	Function    string   `json:"function" msgpack:"function"`
	Fingerprint string   `json:"fingerprint" msgpack:"fingerprint"`
	Nodes       []Node   `json:"nodes" msgpack:"nodes"`
	Edges       []Edge   `json:"edges" msgpack:"edges"`
	ASTEdges    ASTEdges `json:"ast_edges" msgpack:"ast_edges"`
}

// Options controls graph assembly.
type Options struct {
	Debug bool // Attach code and variable names to nodes and edges
}
