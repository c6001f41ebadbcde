// Package compiler implements glox's single-pass compiler: it consumes
// tokens from pkg/lexer directly and emits bytecode into a vm.Chunk, with
// no separate AST stage (Pratt expression parsing folded into statement
// parsing, the way clox's compiler.c does it).
package compiler

import (
	"fmt"
	"os"
	"strconv"

	"github.com/kristofer/glox/pkg/lexer"
	"github.com/kristofer/glox/pkg/vm"
)

type funcType int

const (
	typeFunction funcType = iota
	typeInitializer
	typeMethod
	typeScript
)

type local struct {
	name       lexer.Token
	depth      int
	isCaptured bool
}

type upvalueRef struct {
	index   byte
	isLocal bool
}

type classCompiler struct {
	enclosing     *classCompiler
	hasSuperclass bool
}

// compiler holds the compile-time state for one function body. Compilers
// nest: each `fun` or method declaration pushes a new compiler whose
// enclosing field threads back to the function it's nested in, the way
// clox's Compiler.enclosing does.
type compiler struct {
	enclosing *compiler
	function  *vm.ObjFunction
	kind      funcType

	locals      []local
	upvalues    []upvalueRef
	scopeDepth  int
}

// Parser drives the token stream, tracks error state, and owns the
// currently active compiler chain and class chain.
type Parser struct {
	vm  *vm.VM
	lex *lexer.Lexer

	current  lexer.Token
	previous lexer.Token

	hadError  bool
	panicMode bool

	comp  *compiler
	class *classCompiler
}

// Compile compiles source into a top-level script Function, or returns nil
// if any compile error was reported (spec.md §6, "interpret... CompileError").
// Errors are written to os.Stderr in clox's "[line N] Error at X: msg" form.
func Compile(v *vm.VM, source string) *vm.ObjFunction {
	p := &Parser{vm: v, lex: lexer.New(source)}
	p.comp = p.newCompiler(nil, typeScript)

	p.advance()
	for !p.match(lexer.TokenEOF) {
		p.declaration()
	}
	p.consume(lexer.TokenEOF, "Expect end of expression.")

	fn, _ := p.endCompiler()
	if p.hadError {
		return nil
	}
	return fn
}

func (p *Parser) newCompiler(enclosing *compiler, kind funcType) *compiler {
	c := &compiler{enclosing: enclosing, kind: kind}
	c.function = p.vm.NewFunction()
	p.vm.PinFunction(c.function)
	if kind != typeScript {
		c.function.Name = p.vm.InternString(p.previous.Lexeme)
	}

	// Slot 0 is reserved for the receiver (methods/initializers) or the
	// callee closure itself (plain functions), matching clox's local zero.
	selfName := ""
	if kind != typeFunction {
		selfName = "this"
	}
	c.locals = append(c.locals, local{name: lexer.Token{Lexeme: selfName}, depth: 0})
	return c
}

// endCompiler finishes the current function body, returning the compiled
// Function along with the upvalue-capture list the enclosing compiler's
// OP_CLOSURE emission needs, then pops back to the enclosing compiler.
func (p *Parser) endCompiler() (*vm.ObjFunction, []upvalueRef) {
	p.emitReturn()
	fn := p.comp.function
	upvalues := p.comp.upvalues
	p.vm.UnpinFunction(fn)
	if p.comp.enclosing != nil {
		p.comp = p.comp.enclosing
	}
	return fn, upvalues
}

func (p *Parser) chunk() *vm.Chunk { return p.comp.function.Chunk }

// --- token stream -----------------------------------------------------

func (p *Parser) advance() {
	p.previous = p.current
	for {
		p.current = p.lex.Next()
		if p.current.Type != lexer.TokenError {
			break
		}
		p.errorAtCurrent(p.current.Lexeme)
	}
}

func (p *Parser) check(t lexer.TokenType) bool { return p.current.Type == t }

func (p *Parser) match(t lexer.TokenType) bool {
	if !p.check(t) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) consume(t lexer.TokenType, message string) {
	if p.current.Type == t {
		p.advance()
		return
	}
	p.errorAtCurrent(message)
}

func (p *Parser) errorAtCurrent(message string) { p.errorAt(p.current, message) }
func (p *Parser) error(message string)          { p.errorAt(p.previous, message) }

func (p *Parser) errorAt(tok lexer.Token, message string) {
	if p.panicMode {
		return
	}
	p.panicMode = true
	fmt.Fprintf(os.Stderr, "[line %d] Error", tok.Line)
	switch tok.Type {
	case lexer.TokenEOF:
		fmt.Fprint(os.Stderr, " at end")
	case lexer.TokenError:
		// lexeme is already the message
	default:
		fmt.Fprintf(os.Stderr, " at '%s'", tok.Lexeme)
	}
	fmt.Fprintf(os.Stderr, ": %s\n", message)
	p.hadError = true
}

func (p *Parser) synchronize() {
	p.panicMode = false
	for p.current.Type != lexer.TokenEOF {
		if p.previous.Type == lexer.TokenSemicolon {
			return
		}
		switch p.current.Type {
		case lexer.TokenClass, lexer.TokenFun, lexer.TokenVar, lexer.TokenFor,
			lexer.TokenIf, lexer.TokenWhile, lexer.TokenPrint, lexer.TokenReturn:
			return
		}
		p.advance()
	}
}

// --- byte emission ------------------------------------------------------

func (p *Parser) emitByte(b byte)         { p.chunk().Write(b, p.previous.Line) }
func (p *Parser) emitOp(op vm.OpCode)     { p.chunk().WriteOp(op, p.previous.Line) }
func (p *Parser) emitOpByte(op vm.OpCode, b byte) {
	p.emitOp(op)
	p.emitByte(b)
}

func (p *Parser) emitReturn() {
	if p.comp.kind == typeInitializer {
		p.emitOpByte(vm.OpGetLocal, 0)
	} else {
		p.emitOp(vm.OpNil)
	}
	p.emitOp(vm.OpReturn)
}

func (p *Parser) emitConstant(v vm.Value) {
	p.emitOpByte(vm.OpConstant, p.makeConstant(v))
}

func (p *Parser) makeConstant(v vm.Value) byte {
	idx := p.chunk().AddConstant(v)
	if idx > 255 {
		p.error("Too many constants in one chunk.")
		return 0
	}
	return byte(idx)
}

// emitJump emits op followed by a two-byte placeholder, returning the
// placeholder's offset for patchJump to fill in later.
func (p *Parser) emitJump(op vm.OpCode) int {
	p.emitOp(op)
	p.emitByte(0xff)
	p.emitByte(0xff)
	return len(p.chunk().Code) - 2
}

func (p *Parser) patchJump(offset int) {
	jump := len(p.chunk().Code) - offset - 2
	if jump > 0xffff {
		p.error("Too much code to jump over.")
	}
	p.chunk().Code[offset] = byte(jump >> 8)
	p.chunk().Code[offset+1] = byte(jump & 0xff)
}

func (p *Parser) emitLoop(loopStart int) {
	p.emitOp(vm.OpLoop)
	offset := len(p.chunk().Code) - loopStart + 2
	if offset > 0xffff {
		p.error("Loop body too large.")
	}
	p.emitByte(byte(offset >> 8))
	p.emitByte(byte(offset & 0xff))
}

// --- scopes and locals ---------------------------------------------------

func (p *Parser) beginScope() { p.comp.scopeDepth++ }

func (p *Parser) endScope() {
	p.comp.scopeDepth--
	for len(p.comp.locals) > 0 && p.comp.locals[len(p.comp.locals)-1].depth > p.comp.scopeDepth {
		last := p.comp.locals[len(p.comp.locals)-1]
		if last.isCaptured {
			p.emitOp(vm.OpCloseUpvalue)
		} else {
			p.emitOp(vm.OpPop)
		}
		p.comp.locals = p.comp.locals[:len(p.comp.locals)-1]
	}
}

func identifiersEqual(a, b lexer.Token) bool { return a.Lexeme == b.Lexeme }

func (p *Parser) declareVariable() {
	if p.comp.scopeDepth == 0 {
		return
	}
	name := p.previous
	for i := len(p.comp.locals) - 1; i >= 0; i-- {
		l := p.comp.locals[i]
		if l.depth != -1 && l.depth < p.comp.scopeDepth {
			break
		}
		if identifiersEqual(name, l.name) {
			p.error("Already a variable with this name in this scope.")
		}
	}
	p.addLocal(name)
}

func (p *Parser) addLocal(name lexer.Token) {
	if len(p.comp.locals) >= 256 {
		p.error("Too many local variables in function.")
		return
	}
	p.comp.locals = append(p.comp.locals, local{name: name, depth: -1})
}

func (p *Parser) markInitialized() {
	if p.comp.scopeDepth == 0 {
		return
	}
	p.comp.locals[len(p.comp.locals)-1].depth = p.comp.scopeDepth
}

func resolveLocal(c *compiler, name lexer.Token) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if identifiersEqual(name, c.locals[i].name) {
			if c.locals[i].depth == -1 {
				return -2 // sentinel: read before initialized, caller reports error
			}
			return i
		}
	}
	return -1
}

func addUpvalue(c *compiler, index byte, isLocal bool) int {
	for i, uv := range c.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	if len(c.upvalues) >= 256 {
		return 0
	}
	c.upvalues = append(c.upvalues, upvalueRef{index: index, isLocal: isLocal})
	c.function.UpvalueCount = len(c.upvalues)
	return len(c.upvalues) - 1
}

// resolveUpvalue recursively resolves name as an upvalue captured from an
// enclosing compiler's locals (or its own upvalues, transitively), per
// spec.md §4.5.
func resolveUpvalue(c *compiler, name lexer.Token) int {
	if c.enclosing == nil {
		return -1
	}
	if local := resolveLocal(c.enclosing, name); local >= 0 {
		c.enclosing.locals[local].isCaptured = true
		return addUpvalue(c, byte(local), true)
	}
	if uv := resolveUpvalue(c.enclosing, name); uv >= 0 {
		return addUpvalue(c, byte(uv), false)
	}
	return -1
}

func (p *Parser) identifierConstant(name lexer.Token) byte {
	return p.makeConstant(vm.ObjValue(p.vm.InternString(name.Lexeme)))
}

func (p *Parser) parseVariable(message string) byte {
	p.consume(lexer.TokenIdentifier, message)
	p.declareVariable()
	if p.comp.scopeDepth > 0 {
		return 0
	}
	return p.identifierConstant(p.previous)
}

func (p *Parser) defineVariable(global byte) {
	if p.comp.scopeDepth > 0 {
		p.markInitialized()
		return
	}
	p.emitOpByte(vm.OpDefineGlobal, global)
}

func (p *Parser) argumentList() byte {
	count := 0
	if !p.check(lexer.TokenRightParen) {
		for {
			p.expression()
			if count == 255 {
				p.error("Can't have more than 255 arguments.")
			}
			count++
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.consume(lexer.TokenRightParen, "Expect ')' after arguments.")
	return byte(count)
}

// --- Pratt expression parsing --------------------------------------------

type precedence int

const (
	precNone precedence = iota
	precAssignment
	precOr
	precAnd
	precEquality
	precComparison
	precTerm
	precFactor
	precUnary
	precCall
	precPrimary
)

type parseFn func(p *Parser, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

var rules map[lexer.TokenType]parseRule

func init() {
	rules = map[lexer.TokenType]parseRule{
		lexer.TokenLeftParen:    {(*Parser).grouping, (*Parser).call, precCall},
		lexer.TokenDot:          {nil, (*Parser).dot, precCall},
		lexer.TokenMinus:        {(*Parser).unary, (*Parser).binary, precTerm},
		lexer.TokenPlus:         {nil, (*Parser).binary, precTerm},
		lexer.TokenSlash:        {nil, (*Parser).binary, precFactor},
		lexer.TokenStar:         {nil, (*Parser).binary, precFactor},
		lexer.TokenBang:         {(*Parser).unary, nil, precNone},
		lexer.TokenBangEqual:    {nil, (*Parser).binary, precEquality},
		lexer.TokenEqualEqual:   {nil, (*Parser).binary, precEquality},
		lexer.TokenGreater:      {nil, (*Parser).binary, precComparison},
		lexer.TokenGreaterEqual: {nil, (*Parser).binary, precComparison},
		lexer.TokenLess:         {nil, (*Parser).binary, precComparison},
		lexer.TokenLessEqual:    {nil, (*Parser).binary, precComparison},
		lexer.TokenIdentifier:   {(*Parser).variable, nil, precNone},
		lexer.TokenString:       {(*Parser).string, nil, precNone},
		lexer.TokenNumber:       {(*Parser).number, nil, precNone},
		lexer.TokenAnd:          {nil, (*Parser).and, precAnd},
		lexer.TokenOr:           {nil, (*Parser).or, precOr},
		lexer.TokenFalse:        {(*Parser).literal, nil, precNone},
		lexer.TokenTrue:         {(*Parser).literal, nil, precNone},
		lexer.TokenNil:          {(*Parser).literal, nil, precNone},
		lexer.TokenThis:         {(*Parser).this, nil, precNone},
		lexer.TokenSuper:        {(*Parser).super, nil, precNone},
	}
}

func (p *Parser) getRule(t lexer.TokenType) parseRule {
	if r, ok := rules[t]; ok {
		return r
	}
	return parseRule{precedence: precNone}
}

func (p *Parser) expression() { p.parsePrecedence(precAssignment) }

func (p *Parser) parsePrecedence(prec precedence) {
	p.advance()
	prefix := p.getRule(p.previous.Type).prefix
	if prefix == nil {
		p.error("Expect expression.")
		return
	}
	canAssign := prec <= precAssignment
	prefix(p, canAssign)

	for prec <= p.getRule(p.current.Type).precedence {
		p.advance()
		infix := p.getRule(p.previous.Type).infix
		infix(p, canAssign)
	}

	if canAssign && p.match(lexer.TokenEqual) {
		p.error("Invalid assignment target.")
	}
}

func (p *Parser) number(canAssign bool) {
	n, _ := strconv.ParseFloat(p.previous.Lexeme, 64)
	p.emitConstant(vm.NumberValue(n))
}

func (p *Parser) string(canAssign bool) {
	raw := p.previous.Lexeme
	s := raw[1 : len(raw)-1] // strip surrounding quotes
	p.emitConstant(vm.ObjValue(p.vm.InternString(s)))
}

func (p *Parser) literal(canAssign bool) {
	switch p.previous.Type {
	case lexer.TokenFalse:
		p.emitOp(vm.OpFalse)
	case lexer.TokenTrue:
		p.emitOp(vm.OpTrue)
	case lexer.TokenNil:
		p.emitOp(vm.OpNil)
	}
}

func (p *Parser) grouping(canAssign bool) {
	p.expression()
	p.consume(lexer.TokenRightParen, "Expect ')' after expression.")
}

func (p *Parser) unary(canAssign bool) {
	opType := p.previous.Type
	p.parsePrecedence(precUnary)
	switch opType {
	case lexer.TokenMinus:
		p.emitOp(vm.OpNegate)
	case lexer.TokenBang:
		p.emitOp(vm.OpNot)
	}
}

func (p *Parser) binary(canAssign bool) {
	opType := p.previous.Type
	rule := p.getRule(opType)
	p.parsePrecedence(rule.precedence + 1)

	switch opType {
	case lexer.TokenBangEqual:
		p.emitOp(vm.OpEqual)
		p.emitOp(vm.OpNot)
	case lexer.TokenEqualEqual:
		p.emitOp(vm.OpEqual)
	case lexer.TokenGreater:
		p.emitOp(vm.OpGreater)
	case lexer.TokenGreaterEqual:
		p.emitOp(vm.OpLess)
		p.emitOp(vm.OpNot)
	case lexer.TokenLess:
		p.emitOp(vm.OpLess)
	case lexer.TokenLessEqual:
		p.emitOp(vm.OpGreater)
		p.emitOp(vm.OpNot)
	case lexer.TokenPlus:
		p.emitOp(vm.OpAdd)
	case lexer.TokenMinus:
		p.emitOp(vm.OpSubtract)
	case lexer.TokenStar:
		p.emitOp(vm.OpMultiply)
	case lexer.TokenSlash:
		p.emitOp(vm.OpDivide)
	}
}

func (p *Parser) call(canAssign bool) {
	argCount := p.argumentList()
	p.emitOpByte(vm.OpCall, argCount)
}

func (p *Parser) dot(canAssign bool) {
	p.consume(lexer.TokenIdentifier, "Expect property name after '.'.")
	name := p.identifierConstant(p.previous)

	switch {
	case canAssign && p.match(lexer.TokenEqual):
		p.expression()
		p.emitOpByte(vm.OpSetProperty, name)
	case p.match(lexer.TokenLeftParen):
		argCount := p.argumentList()
		p.emitOpByte(vm.OpInvoke, name)
		p.emitByte(argCount)
	default:
		p.emitOpByte(vm.OpGetProperty, name)
	}
}

func (p *Parser) and(canAssign bool) {
	endJump := p.emitJump(vm.OpJumpIfFalse)
	p.emitOp(vm.OpPop)
	p.parsePrecedence(precAnd)
	p.patchJump(endJump)
}

func (p *Parser) or(canAssign bool) {
	elseJump := p.emitJump(vm.OpJumpIfFalse)
	endJump := p.emitJump(vm.OpJump)
	p.patchJump(elseJump)
	p.emitOp(vm.OpPop)
	p.parsePrecedence(precOr)
	p.patchJump(endJump)
}

func (p *Parser) variable(canAssign bool) {
	p.namedVariable(p.previous, canAssign)
}

func (p *Parser) namedVariable(name lexer.Token, canAssign bool) {
	var getOp, setOp vm.OpCode
	arg := resolveLocal(p.comp, name)
	if arg == -2 {
		p.error("Can't read local variable in its own initializer.")
		arg = 0
	}
	if arg >= 0 {
		getOp, setOp = vm.OpGetLocal, vm.OpSetLocal
	} else if up := resolveUpvalue(p.comp, name); up >= 0 {
		arg = up
		getOp, setOp = vm.OpGetUpvalue, vm.OpSetUpvalue
	} else {
		arg = int(p.identifierConstant(name))
		getOp, setOp = vm.OpGetGlobal, vm.OpSetGlobal
	}

	if canAssign && p.match(lexer.TokenEqual) {
		p.expression()
		p.emitOpByte(setOp, byte(arg))
	} else {
		p.emitOpByte(getOp, byte(arg))
	}
}

var syntheticThis = lexer.Token{Type: lexer.TokenThis, Lexeme: "this"}
var syntheticSuper = lexer.Token{Type: lexer.TokenSuper, Lexeme: "super"}

func (p *Parser) this(canAssign bool) {
	if p.class == nil {
		p.error("Can't use 'this' outside of a class.")
		return
	}
	p.variable(false)
}

func (p *Parser) super(canAssign bool) {
	if p.class == nil {
		p.error("Can't use 'super' outside of a class.")
	} else if !p.class.hasSuperclass {
		p.error("Can't use 'super' in a class with no superclass.")
	}

	p.consume(lexer.TokenDot, "Expect '.' after 'super'.")
	p.consume(lexer.TokenIdentifier, "Expect superclass method name.")
	name := p.identifierConstant(p.previous)

	p.namedVariable(syntheticThis, false)
	if p.match(lexer.TokenLeftParen) {
		argCount := p.argumentList()
		p.namedVariable(syntheticSuper, false)
		p.emitOpByte(vm.OpSuperInvoke, name)
		p.emitByte(argCount)
	} else {
		p.namedVariable(syntheticSuper, false)
		p.emitOpByte(vm.OpGetSuper, name)
	}
}

// --- statements and declarations -----------------------------------------

func (p *Parser) declaration() {
	switch {
	case p.match(lexer.TokenClass):
		p.classDeclaration()
	case p.match(lexer.TokenFun):
		p.funDeclaration()
	case p.match(lexer.TokenVar):
		p.varDeclaration()
	default:
		p.statement()
	}
	if p.panicMode {
		p.synchronize()
	}
}

func (p *Parser) classDeclaration() {
	p.consume(lexer.TokenIdentifier, "Expect class name.")
	nameTok := p.previous
	nameConstant := p.identifierConstant(p.previous)
	p.declareVariable()

	p.emitOpByte(vm.OpClass, nameConstant)
	p.defineVariable(nameConstant)

	cc := &classCompiler{enclosing: p.class}
	p.class = cc

	if p.match(lexer.TokenLess) {
		p.consume(lexer.TokenIdentifier, "Expect superclass name.")
		p.variable(false)
		if identifiersEqual(nameTok, p.previous) {
			p.error("A class can't inherit from itself.")
		}

		p.beginScope()
		p.addLocal(lexer.Token{Lexeme: "super"})
		p.markInitialized()

		p.namedVariable(nameTok, false)
		p.emitOp(vm.OpInherit)
		cc.hasSuperclass = true
	}

	p.namedVariable(nameTok, false)
	p.consume(lexer.TokenLeftBrace, "Expect '{' before class body.")
	for !p.check(lexer.TokenRightBrace) && !p.check(lexer.TokenEOF) {
		p.method()
	}
	p.consume(lexer.TokenRightBrace, "Expect '}' after class body.")
	p.emitOp(vm.OpPop)

	if cc.hasSuperclass {
		p.endScope()
	}
	p.class = p.class.enclosing
}

func (p *Parser) method() {
	p.consume(lexer.TokenIdentifier, "Expect method name.")
	nameConstant := p.identifierConstant(p.previous)

	kind := typeMethod
	if p.previous.Lexeme == "init" {
		kind = typeInitializer
	}
	p.function(kind)
	p.emitOpByte(vm.OpMethod, nameConstant)
}

func (p *Parser) funDeclaration() {
	global := p.parseVariable("Expect function name.")
	p.markInitialized()
	p.function(typeFunction)
	p.defineVariable(global)
}

func (p *Parser) function(kind funcType) {
	p.comp = p.newCompiler(p.comp, kind)
	p.beginScope()

	p.consume(lexer.TokenLeftParen, "Expect '(' after function name.")
	if !p.check(lexer.TokenRightParen) {
		for {
			p.comp.function.Arity++
			if p.comp.function.Arity > 255 {
				p.errorAtCurrent("Can't have more than 255 parameters.")
			}
			paramConstant := p.parseVariable("Expect parameter name.")
			p.defineVariable(paramConstant)
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.consume(lexer.TokenRightParen, "Expect ')' after parameters.")
	p.consume(lexer.TokenLeftBrace, "Expect '{' before function body.")
	p.block()

	fn, upvalues := p.endCompiler()

	p.emitOpByte(vm.OpClosure, p.makeConstant(vm.ObjValue(fn)))
	for _, uv := range upvalues {
		p.emitByte(boolByte(uv.isLocal))
		p.emitByte(uv.index)
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func (p *Parser) varDeclaration() {
	global := p.parseVariable("Expect variable name.")
	if p.match(lexer.TokenEqual) {
		p.expression()
	} else {
		p.emitOp(vm.OpNil)
	}
	p.consume(lexer.TokenSemicolon, "Expect ';' after variable declaration.")
	p.defineVariable(global)
}

func (p *Parser) statement() {
	switch {
	case p.match(lexer.TokenPrint):
		p.printStatement()
	case p.match(lexer.TokenFor):
		p.forStatement()
	case p.match(lexer.TokenIf):
		p.ifStatement()
	case p.match(lexer.TokenReturn):
		p.returnStatement()
	case p.match(lexer.TokenWhile):
		p.whileStatement()
	case p.match(lexer.TokenLeftBrace):
		p.beginScope()
		p.block()
		p.endScope()
	default:
		p.expressionStatement()
	}
}

func (p *Parser) block() {
	for !p.check(lexer.TokenRightBrace) && !p.check(lexer.TokenEOF) {
		p.declaration()
	}
	p.consume(lexer.TokenRightBrace, "Expect '}' after block.")
}

func (p *Parser) printStatement() {
	p.expression()
	p.consume(lexer.TokenSemicolon, "Expect ';' after value.")
	p.emitOp(vm.OpPrint)
}

func (p *Parser) returnStatement() {
	if p.comp.kind == typeScript {
		p.error("Can't return from top-level code.")
	}
	if p.match(lexer.TokenSemicolon) {
		p.emitReturn()
		return
	}
	if p.comp.kind == typeInitializer {
		p.error("Can't return a value from an initializer.")
	}
	p.expression()
	p.consume(lexer.TokenSemicolon, "Expect ';' after return value.")
	p.emitOp(vm.OpReturn)
}

func (p *Parser) ifStatement() {
	p.consume(lexer.TokenLeftParen, "Expect '(' after 'if'.")
	p.expression()
	p.consume(lexer.TokenRightParen, "Expect ')' after condition.")

	thenJump := p.emitJump(vm.OpJumpIfFalse)
	p.emitOp(vm.OpPop)
	p.statement()

	elseJump := p.emitJump(vm.OpJump)
	p.patchJump(thenJump)
	p.emitOp(vm.OpPop)

	if p.match(lexer.TokenElse) {
		p.statement()
	}
	p.patchJump(elseJump)
}

func (p *Parser) whileStatement() {
	loopStart := len(p.chunk().Code)
	p.consume(lexer.TokenLeftParen, "Expect '(' after 'while'.")
	p.expression()
	p.consume(lexer.TokenRightParen, "Expect ')' after condition.")

	exitJump := p.emitJump(vm.OpJumpIfFalse)
	p.emitOp(vm.OpPop)
	p.statement()
	p.emitLoop(loopStart)

	p.patchJump(exitJump)
	p.emitOp(vm.OpPop)
}

// forStatement desugars `for (init; cond; incr) body` into the equivalent
// while loop, the way clox's compiler does, emitting no dedicated FOR opcode.
func (p *Parser) forStatement() {
	p.beginScope()
	p.consume(lexer.TokenLeftParen, "Expect '(' after 'for'.")

	switch {
	case p.match(lexer.TokenSemicolon):
		// no initializer
	case p.match(lexer.TokenVar):
		p.varDeclaration()
	default:
		p.expressionStatement()
	}

	loopStart := len(p.chunk().Code)
	exitJump := -1
	if !p.match(lexer.TokenSemicolon) {
		p.expression()
		p.consume(lexer.TokenSemicolon, "Expect ';' after loop condition.")
		exitJump = p.emitJump(vm.OpJumpIfFalse)
		p.emitOp(vm.OpPop)
	}

	if !p.match(lexer.TokenRightParen) {
		bodyJump := p.emitJump(vm.OpJump)
		incrementStart := len(p.chunk().Code)
		p.expression()
		p.emitOp(vm.OpPop)
		p.consume(lexer.TokenRightParen, "Expect ')' after for clauses.")

		p.emitLoop(loopStart)
		loopStart = incrementStart
		p.patchJump(bodyJump)
	}

	p.statement()
	p.emitLoop(loopStart)

	if exitJump != -1 {
		p.patchJump(exitJump)
		p.emitOp(vm.OpPop)
	}
	p.endScope()
}

func (p *Parser) expressionStatement() {
	p.expression()
	p.consume(lexer.TokenSemicolon, "Expect ';' after expression.")
	p.emitOp(vm.OpPop)
}
