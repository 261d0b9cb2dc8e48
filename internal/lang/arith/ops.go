// Package arith is a small integer language staged as expression graphs:
// variables, assignment, sequencing, loops and conditionals over long values.
package arith

import (
	"staged/internal/expr"
	"staged/internal/flow"
	"staged/internal/value"
)

// Domain is the registry tag of the language.
const Domain = "arith"

// opInfo describes one member of the language.
type opInfo struct {
	minArgs int
	maxArgs int // -1 for variadic
	result  value.Kind
	stmt    flow.StmtKind
}

func member(name string) expr.Member { return expr.Member{Owner: Domain, Name: name} }

var (
	MemberVar    = member("var")
	MemberAssign = member("assign")
	MemberRead   = member("read")
	MemberSeq    = member("seq")
	MemberWhile  = member("while")
	MemberIf     = member("if")
	MemberAdd    = member("add")
	MemberSub    = member("sub")
	MemberMul    = member("mul")
	MemberDiv    = member("div")
	MemberMod    = member("mod")
	MemberNeg    = member("neg")
	MemberLt     = member("lt")
	MemberLe     = member("le")
	MemberEq     = member("eq")
	MemberNot    = member("not")
	MemberAnd    = member("and")
	MemberOr     = member("or")
)

var ops = map[expr.Member]opInfo{
	MemberVar:    {minArgs: 1, maxArgs: 1, result: value.KindLong, stmt: flow.StmtVar},
	MemberAssign: {minArgs: 2, maxArgs: 2, result: value.KindLong, stmt: flow.StmtAssign},
	MemberRead:   {minArgs: 1, maxArgs: 1, result: value.KindLong, stmt: flow.StmtRead},
	MemberSeq:    {minArgs: 1, maxArgs: -1, result: value.KindInvalid, stmt: flow.StmtSeq},
	MemberWhile:  {minArgs: 2, maxArgs: 2, result: value.KindLong, stmt: flow.StmtLoop},
	MemberIf:     {minArgs: 2, maxArgs: 3, result: value.KindLong, stmt: flow.StmtIf},
	MemberAdd:    {minArgs: 2, maxArgs: 2, result: value.KindLong},
	MemberSub:    {minArgs: 2, maxArgs: 2, result: value.KindLong},
	MemberMul:    {minArgs: 2, maxArgs: 2, result: value.KindLong},
	MemberDiv:    {minArgs: 2, maxArgs: 2, result: value.KindLong},
	MemberMod:    {minArgs: 2, maxArgs: 2, result: value.KindLong},
	MemberNeg:    {minArgs: 1, maxArgs: 1, result: value.KindLong},
	MemberLt:     {minArgs: 2, maxArgs: 2, result: value.KindBool},
	MemberLe:     {minArgs: 2, maxArgs: 2, result: value.KindBool},
	MemberEq:     {minArgs: 2, maxArgs: 2, result: value.KindBool},
	MemberNot:    {minArgs: 1, maxArgs: 1, result: value.KindBool},
	MemberAnd:    {minArgs: 2, maxArgs: 2, result: value.KindBool},
	MemberOr:     {minArgs: 2, maxArgs: 2, result: value.KindBool},
}

// roles exposes the statement forms to the definite-assignment analysis.
type roles struct{}

func (roles) StmtKind(m expr.Member) flow.StmtKind {
	return ops[m].stmt
}
