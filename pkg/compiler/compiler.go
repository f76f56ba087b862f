// Package compiler implements the single-pass Pratt-style compiler
// that turns lox source directly into bytecode. There is no separate
// AST: every expression and statement parser emits bytes into the
// enclosing function's chunk as it recognizes them, using forward
// jumps with backpatching for control flow and a stack of compiler
// frames to support nested function bodies.
package compiler

import (
	"fmt"
	"io"
	"strconv"

	"github.com/kristofer/loxvm/pkg/bytecode"
	"github.com/kristofer/loxvm/pkg/lexer"
	"github.com/kristofer/loxvm/pkg/object"
	"github.com/kristofer/loxvm/pkg/value"
)

// Precedence orders the binding power of infix operators, low to high.
type Precedence int

const (
	PrecNone Precedence = iota
	PrecAssignment       // =
	PrecOr               // or
	PrecAnd              // and
	PrecEquality         // == !=
	PrecComparison       // < > <= >=
	PrecTerm             // + -
	PrecFactor           // * /
	PrecUnary            // ! -
	PrecCall             // . ()
	PrecPrimary
)

type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

// FunctionKind distinguishes the implicit top-level script frame from
// a real function frame; only the latter may contain a `return`
// statement.
type FunctionKind int

const (
	FuncScript FunctionKind = iota
	FuncFunction
)

const maxLocals = 256
const maxUpvalues = 256

type local struct {
	name       string
	depth      int // -1 sentinel: declared but not yet initialized
	isCaptured bool
}

type upvalueRef struct {
	index   uint8
	isLocal bool
}

// funcState is one frame of the compiler-frame stack: the state
// needed to compile a single function body. initCompiler pushes a
// frame, endCompiler pops it; the emitter always targets the frame on
// top of the stack.
type funcState struct {
	enclosing  *funcState
	function   *object.Function
	kind       FunctionKind
	locals     [maxLocals]local
	localCount int
	upvalues   [maxUpvalues]upvalueRef
	scopeDepth int
}

// Compiler holds the Pratt parser's token window and error state
// alongside the compiler-frame stack. A Compiler is single-use: build
// one per call to Compile.
type Compiler struct {
	scanner *lexer.Lexer
	heap    *object.Heap
	fn      *funcState

	curTok  lexer.Token
	prevTok lexer.Token

	hadError  bool
	panicMode bool
	errOut    io.Writer
}

// Compile compiles source into a top-level Function whose chunk holds
// the compiled program. On any compile error it returns (nil, false)
// after reporting every independently-recoverable error to errOut.
func Compile(source string, heap *object.Heap, errOut io.Writer) (*object.Function, bool) {
	c := &Compiler{scanner: lexer.New(source), heap: heap, errOut: errOut}
	c.initCompiler(FuncScript, "")

	c.advance()
	for !c.match(lexer.EOF) {
		c.declaration()
	}

	fn := c.endCompiler()
	if c.hadError {
		return nil, false
	}
	return fn, true
}

func (c *Compiler) initCompiler(kind FunctionKind, name string) {
	fn := &funcState{enclosing: c.fn, function: c.heap.NewFunction(), kind: kind}
	if kind != FuncScript {
		fn.function.Name = c.heap.InternString([]byte(name))
	}
	// Slot 0 is reserved for the callee itself.
	fn.locals[0] = local{name: "", depth: 0}
	fn.localCount = 1
	c.fn = fn
}

func (c *Compiler) endCompiler() *object.Function {
	c.emitReturn()
	fn := c.fn.function
	c.fn = c.fn.enclosing
	return fn
}

func (c *Compiler) currentChunk() *value.Chunk { return &c.fn.function.Chunk }

// ---- token stream plumbing ----

func (c *Compiler) advance() {
	c.prevTok = c.curTok
	for {
		c.curTok = c.scanner.NextToken()
		if c.curTok.Kind != lexer.Error {
			break
		}
		c.errorAtCurrent(c.curTok.Message)
	}
}

func (c *Compiler) check(kind lexer.TokenKind) bool { return c.curTok.Kind == kind }

func (c *Compiler) match(kind lexer.TokenKind) bool {
	if !c.check(kind) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(kind lexer.TokenKind, message string) {
	if c.curTok.Kind == kind {
		c.advance()
		return
	}
	c.errorAtCurrent(message)
}

func (c *Compiler) errorAtCurrent(message string) { c.errorAt(c.curTok, message) }
func (c *Compiler) error(message string)          { c.errorAt(c.prevTok, message) }

func (c *Compiler) errorAt(tok lexer.Token, message string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	if c.errOut != nil {
		switch tok.Kind {
		case lexer.EOF:
			fmt.Fprintf(c.errOut, "[Line %d] Error at end: %s\n", tok.Line, message)
		case lexer.Error:
			fmt.Fprintf(c.errOut, "[Line %d] Error: %s\n", tok.Line, tok.Message)
		default:
			fmt.Fprintf(c.errOut, "[Line %d] Error at '%s': %s\n", tok.Line, tok.Lexeme, message)
		}
	}
	c.hadError = true
}

// synchronize resumes parsing at the next statement boundary after a
// syntax error, so a single mistake doesn't cascade into spurious
// follow-on errors.
func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.curTok.Kind != lexer.EOF {
		if c.prevTok.Kind == lexer.Semicolon {
			return
		}
		switch c.curTok.Kind {
		case lexer.Class, lexer.Fun, lexer.Var, lexer.For, lexer.If, lexer.While, lexer.Print, lexer.Return:
			return
		}
		c.advance()
	}
}

// ---- byte emission ----

func (c *Compiler) emitByte(b byte) {
	c.currentChunk().Write(b, c.prevTok.Line)
}

func (c *Compiler) emitOp(op bytecode.OpCode) { c.emitByte(byte(op)) }

func (c *Compiler) emitOpByte(op bytecode.OpCode, operand byte) {
	c.emitOp(op)
	c.emitByte(operand)
}

func (c *Compiler) emitReturn() {
	c.emitOp(bytecode.OpNil)
	c.emitOp(bytecode.OpReturn)
}

func (c *Compiler) makeConstant(v value.Value) byte {
	idx := c.currentChunk().AddConstant(v)
	if idx > 255 {
		c.error("Too many constants in one chunk.")
		return 0
	}
	return byte(idx)
}

func (c *Compiler) emitConstant(v value.Value) {
	c.emitOpByte(bytecode.OpConstant, c.makeConstant(v))
}

// emitJump writes a two-byte placeholder after op and returns its
// offset so patchJump can backfill the real distance once known.
func (c *Compiler) emitJump(op bytecode.OpCode) int {
	c.emitOp(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return len(c.currentChunk().Code) - 2
}

func (c *Compiler) patchJump(offset int) {
	jump := len(c.currentChunk().Code) - offset - 2
	if jump > 65535 {
		c.error("Too much code to jump over.")
		return
	}
	code := c.currentChunk().Code
	code[offset] = byte(jump >> 8)
	code[offset+1] = byte(jump & 0xff)
}

func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(bytecode.OpLoop)
	offset := len(c.currentChunk().Code) - loopStart + 2
	if offset > 65535 {
		c.error("Loop body too large.")
	}
	c.emitByte(byte(offset >> 8))
	c.emitByte(byte(offset & 0xff))
}

// ---- scopes and locals ----

func (c *Compiler) beginScope() { c.fn.scopeDepth++ }

func (c *Compiler) endScope() {
	c.fn.scopeDepth--
	for c.fn.localCount > 0 && c.fn.locals[c.fn.localCount-1].depth > c.fn.scopeDepth {
		if c.fn.locals[c.fn.localCount-1].isCaptured {
			c.emitOp(bytecode.OpCloseUpvalue)
		} else {
			c.emitOp(bytecode.OpPop)
		}
		c.fn.localCount--
	}
}

func identifiersEqual(a, b string) bool { return a == b }

func (c *Compiler) resolveLocal(fn *funcState, name string) int {
	for i := fn.localCount - 1; i >= 0; i-- {
		l := &fn.locals[i]
		if identifiersEqual(l.name, name) {
			if l.depth == -1 {
				c.error("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

func (c *Compiler) addUpvalue(fn *funcState, index uint8, isLocal bool) int {
	count := fn.function.UpvalueCount
	for i := 0; i < count; i++ {
		uv := &fn.upvalues[i]
		if int(uv.index) == int(index) && uv.isLocal == isLocal {
			return i
		}
	}
	if count == maxUpvalues {
		c.error("Too many closure variables in function.")
		return 0
	}
	fn.upvalues[count] = upvalueRef{index: index, isLocal: isLocal}
	fn.function.UpvalueCount++
	return count
}

func (c *Compiler) resolveUpvalue(fn *funcState, name string) int {
	if fn.enclosing == nil {
		return -1
	}
	if local := c.resolveLocal(fn.enclosing, name); local != -1 {
		fn.enclosing.locals[local].isCaptured = true
		return c.addUpvalue(fn, uint8(local), true)
	}
	if up := c.resolveUpvalue(fn.enclosing, name); up != -1 {
		return c.addUpvalue(fn, uint8(up), false)
	}
	return -1
}

func (c *Compiler) addLocal(name string) {
	if c.fn.localCount == maxLocals {
		c.error("Too many local variables in function.")
		return
	}
	c.fn.locals[c.fn.localCount] = local{name: name, depth: -1}
	c.fn.localCount++
}

func (c *Compiler) declareVariable() {
	if c.fn.scopeDepth == 0 {
		return
	}
	name := c.prevTok.Lexeme
	for i := c.fn.localCount - 1; i >= 0; i-- {
		l := &c.fn.locals[i]
		if l.depth != -1 && l.depth < c.fn.scopeDepth {
			break
		}
		if identifiersEqual(l.name, name) {
			c.error("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name)
}

func (c *Compiler) identifierConstant(name string) byte {
	return c.makeConstant(value.FromObj(c.heap.InternString([]byte(name))))
}

func (c *Compiler) parseVariable(errorMessage string) byte {
	c.consume(lexer.Identifier, errorMessage)
	c.declareVariable()
	if c.fn.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(c.prevTok.Lexeme)
}

func (c *Compiler) markInitialized() {
	if c.fn.scopeDepth == 0 {
		return
	}
	c.fn.locals[c.fn.localCount-1].depth = c.fn.scopeDepth
}

func (c *Compiler) defineVariable(global byte) {
	if c.fn.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitOpByte(bytecode.OpDefineGlobal, global)
}

func (c *Compiler) argumentList() byte {
	count := 0
	if !c.check(lexer.RightParen) {
		for {
			c.expression()
			if count == 255 {
				c.error("Can't have more than 255 arguments.")
			}
			count++
			if !c.match(lexer.Comma) {
				break
			}
		}
	}
	c.consume(lexer.RightParen, "Expect ')' after arguments.")
	return byte(count)
}

// ---- Pratt driver ----

func (c *Compiler) parsePrecedence(prec Precedence) {
	c.advance()
	prefixRule := rules[c.prevTok.Kind].prefix
	if prefixRule == nil {
		c.error("Expect expression.")
		return
	}
	canAssign := prec <= PrecAssignment
	prefixRule(c, canAssign)

	for prec <= rules[c.curTok.Kind].precedence {
		c.advance()
		infixRule := rules[c.prevTok.Kind].infix
		infixRule(c, canAssign)
	}

	if canAssign && c.match(lexer.Equal) {
		c.error("Invalid assignment target.")
	}
}

func (c *Compiler) expression() { c.parsePrecedence(PrecAssignment) }

// ---- expression parsers ----

func number(c *Compiler, canAssign bool) {
	n, err := strconv.ParseFloat(c.prevTok.Lexeme, 64)
	if err != nil {
		c.error("Invalid number literal.")
		return
	}
	c.emitConstant(value.Number(n))
}

func stringLiteral(c *Compiler, canAssign bool) {
	lexeme := c.prevTok.Lexeme
	trimmed := lexeme[1 : len(lexeme)-1] // strip surrounding quotes
	s := c.heap.InternString([]byte(trimmed))
	c.emitConstant(value.FromObj(s))
}

func literal(c *Compiler, canAssign bool) {
	switch c.prevTok.Kind {
	case lexer.False:
		c.emitOp(bytecode.OpFalse)
	case lexer.True:
		c.emitOp(bytecode.OpTrue)
	case lexer.Nil:
		c.emitOp(bytecode.OpNil)
	}
}

func grouping(c *Compiler, canAssign bool) {
	c.expression()
	c.consume(lexer.RightParen, "Expect ')' after expression.")
}

func unary(c *Compiler, canAssign bool) {
	opKind := c.prevTok.Kind
	c.parsePrecedence(PrecUnary)
	switch opKind {
	case lexer.Minus:
		c.emitOp(bytecode.OpNegate)
	case lexer.Bang:
		c.emitOp(bytecode.OpNot)
	}
}

func binary(c *Compiler, canAssign bool) {
	opKind := c.prevTok.Kind
	rule := rules[opKind]
	c.parsePrecedence(rule.precedence + 1)

	switch opKind {
	case lexer.Plus:
		c.emitOp(bytecode.OpAdd)
	case lexer.Minus:
		c.emitOp(bytecode.OpSubtract)
	case lexer.Star:
		c.emitOp(bytecode.OpMultiply)
	case lexer.Slash:
		c.emitOp(bytecode.OpDivide)
	case lexer.EqualEqual:
		c.emitOp(bytecode.OpEqual)
	case lexer.BangEqual:
		c.emitOp(bytecode.OpEqual)
		c.emitOp(bytecode.OpNot)
	case lexer.Greater:
		c.emitOp(bytecode.OpGreater)
	case lexer.GreaterEqual:
		c.emitOp(bytecode.OpLess)
		c.emitOp(bytecode.OpNot)
	case lexer.Less:
		c.emitOp(bytecode.OpLess)
	case lexer.LessEqual:
		c.emitOp(bytecode.OpGreater)
		c.emitOp(bytecode.OpNot)
	}
}

func and_(c *Compiler, canAssign bool) {
	endJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emitOp(bytecode.OpPop)
	c.parsePrecedence(PrecAnd)
	c.patchJump(endJump)
}

func or_(c *Compiler, canAssign bool) {
	elseJump := c.emitJump(bytecode.OpJumpIfFalse)
	endJump := c.emitJump(bytecode.OpJump)
	c.patchJump(elseJump)
	c.emitOp(bytecode.OpPop)
	c.parsePrecedence(PrecOr)
	c.patchJump(endJump)
}

func (c *Compiler) namedVariable(name string, canAssign bool) {
	var getOp, setOp bytecode.OpCode
	var arg int
	if local := c.resolveLocal(c.fn, name); local != -1 {
		getOp, setOp, arg = bytecode.OpGetLocal, bytecode.OpSetLocal, local
	} else if up := c.resolveUpvalue(c.fn, name); up != -1 {
		getOp, setOp, arg = bytecode.OpGetUpvalue, bytecode.OpSetUpvalue, up
	} else {
		arg = int(c.identifierConstant(name))
		getOp, setOp = bytecode.OpGetGlobal, bytecode.OpSetGlobal
	}

	if canAssign && c.match(lexer.Equal) {
		c.expression()
		c.emitOpByte(setOp, byte(arg))
	} else {
		c.emitOpByte(getOp, byte(arg))
	}
}

func variable(c *Compiler, canAssign bool) {
	c.namedVariable(c.prevTok.Lexeme, canAssign)
}

func call(c *Compiler, canAssign bool) {
	argCount := c.argumentList()
	c.emitOpByte(bytecode.OpCall, argCount)
}

// ---- parse rule table ----

var rules [lexer.EOF + 1]parseRule

func init() {
	rules[lexer.LeftParen] = parseRule{grouping, call, PrecCall}
	rules[lexer.Minus] = parseRule{unary, binary, PrecTerm}
	rules[lexer.Plus] = parseRule{nil, binary, PrecTerm}
	rules[lexer.Slash] = parseRule{nil, binary, PrecFactor}
	rules[lexer.Star] = parseRule{nil, binary, PrecFactor}
	rules[lexer.Bang] = parseRule{unary, nil, PrecNone}
	rules[lexer.BangEqual] = parseRule{nil, binary, PrecEquality}
	rules[lexer.EqualEqual] = parseRule{nil, binary, PrecEquality}
	rules[lexer.Greater] = parseRule{nil, binary, PrecComparison}
	rules[lexer.GreaterEqual] = parseRule{nil, binary, PrecComparison}
	rules[lexer.Less] = parseRule{nil, binary, PrecComparison}
	rules[lexer.LessEqual] = parseRule{nil, binary, PrecComparison}
	rules[lexer.Identifier] = parseRule{variable, nil, PrecNone}
	rules[lexer.String] = parseRule{stringLiteral, nil, PrecNone}
	rules[lexer.Number] = parseRule{number, nil, PrecNone}
	rules[lexer.And] = parseRule{nil, and_, PrecAnd}
	rules[lexer.Or] = parseRule{nil, or_, PrecOr}
	rules[lexer.False] = parseRule{literal, nil, PrecNone}
	rules[lexer.True] = parseRule{literal, nil, PrecNone}
	rules[lexer.Nil] = parseRule{literal, nil, PrecNone}
}

// ---- declarations and statements ----

func (c *Compiler) declaration() {
	switch {
	case c.match(lexer.Fun):
		c.funDeclaration()
	case c.match(lexer.Var):
		c.varDeclaration()
	default:
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) funDeclaration() {
	global := c.parseVariable("Expect function name.")
	c.markInitialized()
	c.function(FuncFunction)
	c.defineVariable(global)
}

func (c *Compiler) function(kind FunctionKind) {
	name := c.prevTok.Lexeme
	c.initCompiler(kind, name)
	childFn := c.fn
	c.beginScope()

	c.consume(lexer.LeftParen, "Expect '(' after function name.")
	if !c.check(lexer.RightParen) {
		for {
			c.fn.function.Arity++
			if c.fn.function.Arity > 255 {
				c.errorAtCurrent("Can't have more than 255 parameters.")
			}
			paramConstant := c.parseVariable("Expect parameter name.")
			c.defineVariable(paramConstant)
			if !c.match(lexer.Comma) {
				break
			}
		}
	}
	c.consume(lexer.RightParen, "Expect ')' after parameters.")
	c.consume(lexer.LeftBrace, "Expect '{' before function body.")
	c.block()

	fn := c.endCompiler() // restores c.fn to the enclosing frame

	idx := c.currentChunk().AddConstant(value.FromObj(fn))
	if idx > 255 {
		c.error("Too many constants in one chunk.")
		idx = 0
	}
	c.emitOpByte(bytecode.OpClosure, byte(idx))
	for i := 0; i < fn.UpvalueCount; i++ {
		uv := childFn.upvalues[i]
		if uv.isLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(uv.index)
	}
}

func (c *Compiler) varDeclaration() {
	global := c.parseVariable("Expect variable name.")
	if c.match(lexer.Equal) {
		c.expression()
	} else {
		c.emitOp(bytecode.OpNil)
	}
	c.consume(lexer.Semicolon, "Expect ';' after variable declaration.")
	c.defineVariable(global)
}

func (c *Compiler) statement() {
	switch {
	case c.match(lexer.Print):
		c.printStatement()
	case c.match(lexer.For):
		c.forStatement()
	case c.match(lexer.If):
		c.ifStatement()
	case c.match(lexer.Return):
		c.returnStatement()
	case c.match(lexer.While):
		c.whileStatement()
	case c.match(lexer.LeftBrace):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) block() {
	for !c.check(lexer.RightBrace) && !c.check(lexer.EOF) {
		c.declaration()
	}
	c.consume(lexer.RightBrace, "Expect '}' after block.")
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(lexer.Semicolon, "Expect ';' after value.")
	c.emitOp(bytecode.OpPrint)
}

func (c *Compiler) returnStatement() {
	if c.fn.kind == FuncScript {
		c.error("Can't return from top-level code.")
	}
	if c.match(lexer.Semicolon) {
		c.emitReturn()
		return
	}
	c.expression()
	c.consume(lexer.Semicolon, "Expect ';' after return value.")
	c.emitOp(bytecode.OpReturn)
}

func (c *Compiler) ifStatement() {
	c.consume(lexer.LeftParen, "Expect '(' after 'if'.")
	c.expression()
	c.consume(lexer.RightParen, "Expect ')' after condition.")

	thenJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emitOp(bytecode.OpPop)
	c.statement()

	elseJump := c.emitJump(bytecode.OpJump)
	c.patchJump(thenJump)
	c.emitOp(bytecode.OpPop)

	if c.match(lexer.Else) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) whileStatement() {
	loopStart := len(c.currentChunk().Code)
	c.consume(lexer.LeftParen, "Expect '(' after 'while'.")
	c.expression()
	c.consume(lexer.RightParen, "Expect ')' after condition.")

	exitJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emitOp(bytecode.OpPop)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(bytecode.OpPop)
}

func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(lexer.LeftParen, "Expect '(' after 'for'.")
	switch {
	case c.match(lexer.Semicolon):
		// no initializer
	case c.match(lexer.Var):
		c.varDeclaration()
	default:
		c.expressionStatement()
	}

	loopStart := len(c.currentChunk().Code)
	exitJump := -1
	if !c.match(lexer.Semicolon) {
		c.expression()
		c.consume(lexer.Semicolon, "Expect ';' after loop condition.")
		exitJump = c.emitJump(bytecode.OpJumpIfFalse)
		c.emitOp(bytecode.OpPop)
	}

	if !c.match(lexer.RightParen) {
		bodyJump := c.emitJump(bytecode.OpJump)
		incrementStart := len(c.currentChunk().Code)
		c.expression()
		c.emitOp(bytecode.OpPop)
		c.consume(lexer.RightParen, "Expect ')' after for clauses.")

		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	}

	c.statement()
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(bytecode.OpPop)
	}
	c.endScope()
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(lexer.Semicolon, "Expect ';' after expression.")
	c.emitOp(bytecode.OpPop)
}
