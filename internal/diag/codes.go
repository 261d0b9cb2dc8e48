package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Структура графа
	GraphInfo          Code = 1000
	GraphUnknownNode   Code = 1001
	GraphBadArity      Code = 1002
	GraphBadLeafType   Code = 1003
	GraphUnknownMember Code = 1004

	// Семантические проверки
	SemaInfo            Code = 2000
	SemaUndefinedVar    Code = 2001
	SemaAssignNotVar    Code = 2002
	SemaReadNotVar      Code = 2003
	SemaResultMismatch  Code = 2004
	SemaNonBoolCond     Code = 2005
	SemaUnexpectedValue Code = 2006

	// Компиляция и синтез
	CompInfo            Code = 3000
	CompSynthesisFailed Code = 3001
	CompUnknownDomain   Code = 3002
	CompUnsupportedNode Code = 3003
	CompMalformedBody   Code = 3004
	CompMissingCapture  Code = 3005
	CompDuplicateDomain Code = 3006
	CompBinderSealed    Code = 3007

	// Выполнение
	EvalInfo           Code = 4000
	EvalDivideByZero   Code = 4001
	EvalTypeMismatch   Code = 4002
	EvalSlotOutOfRange Code = 4003
	EvalCallbackFailed Code = 4004
	EvalRangeTooLarge  Code = 4005
	EvalArgsMismatch   Code = 4006
)

var codeDescription = map[Code]string{
	UnknownCode:         "Unknown error",
	GraphInfo:           "Graph information",
	GraphUnknownNode:    "Reference to a node outside the graph",
	GraphBadArity:       "Operation has the wrong number of arguments",
	GraphBadLeafType:    "Leaf has an unexpected type",
	GraphUnknownMember:  "Operation is not defined by the domain",
	SemaInfo:            "Semantic information",
	SemaUndefinedVar:    "Variable may be read before assignment",
	SemaAssignNotVar:    "Assignment target is not a variable",
	SemaReadNotVar:      "Read target is not a variable",
	SemaResultMismatch:  "Root result type does not match the domain",
	SemaNonBoolCond:     "Condition is not boolean",
	SemaUnexpectedValue: "Unexpected value kind",
	CompInfo:            "Compilation information",
	CompSynthesisFailed: "Synthesis backend rejected the plan",
	CompUnknownDomain:   "No compiler registered for domain",
	CompUnsupportedNode: "Compiler cannot lower node",
	CompMalformedBody:   "Malformed synthesis body",
	CompMissingCapture:  "Synthesis body references a missing capture",
	CompDuplicateDomain: "Domain already registered",
	CompBinderSealed:    "Binder is sealed",
	EvalInfo:            "Evaluation information",
	EvalDivideByZero:    "Division by zero",
	EvalTypeMismatch:    "Value has an unexpected type at runtime",
	EvalSlotOutOfRange:  "Environment slot out of range",
	EvalCallbackFailed:  "Host callback failed",
	EvalRangeTooLarge:   "Range is too large to materialize",
	EvalArgsMismatch:    "Arguments do not match the slot layout",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 5000:
		return fmt.Sprintf("STG%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
