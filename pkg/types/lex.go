package types

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

const (
	whitespaceToken = iota
	pipeToken
	questionToken
	openParenToken
	closeParenToken
	arraySuffixToken
	openAngleToken
	closeAngleToken
	openBraceToken
	closeBraceToken
	commaToken
	colonToken
	singleQuotedToken
	doubleQuotedToken
	integerToken
	identifierToken
)

var whitespaceMatcher = parsly.NewToken(whitespaceToken, "Whitespace", matcher.NewWhiteSpace())
var pipeMatcher = parsly.NewToken(pipeToken, "|", matcher.NewByte('|'))
var questionMatcher = parsly.NewToken(questionToken, "?", matcher.NewByte('?'))
var openParenMatcher = parsly.NewToken(openParenToken, "(", matcher.NewByte('('))
var closeParenMatcher = parsly.NewToken(closeParenToken, ")", matcher.NewByte(')'))
var arraySuffixMatcher = parsly.NewToken(arraySuffixToken, "[]", matcher.NewFragment("[]"))
var openAngleMatcher = parsly.NewToken(openAngleToken, "<", matcher.NewByte('<'))
var closeAngleMatcher = parsly.NewToken(closeAngleToken, ">", matcher.NewByte('>'))
var openBraceMatcher = parsly.NewToken(openBraceToken, "{", matcher.NewByte('{'))
var closeBraceMatcher = parsly.NewToken(closeBraceToken, "}", matcher.NewByte('}'))
var commaMatcher = parsly.NewToken(commaToken, ",", matcher.NewByte(','))
var colonMatcher = parsly.NewToken(colonToken, ":", matcher.NewByte(':'))
var singleQuotedMatcher = parsly.NewToken(singleQuotedToken, "SingleQuote", matcher.NewBlock('\'', '\'', '\\'))
var doubleQuotedMatcher = parsly.NewToken(doubleQuotedToken, "DoubleQuote", matcher.NewBlock('"', '"', '\\'))
var integerMatcher = parsly.NewToken(integerToken, "Integer", &integerMatch{})
var identifierMatcher = parsly.NewToken(identifierToken, "Identifier", &identifierMatch{})

type integerMatch struct{}

func (m *integerMatch) Match(cursor *parsly.Cursor) int {
	pos := cursor.Pos
	if pos < cursor.InputSize && cursor.Input[pos] == '-' {
		pos++
	}
	start := pos
	for pos < cursor.InputSize && cursor.Input[pos] >= '0' && cursor.Input[pos] <= '9' {
		pos++
	}
	if pos == start {
		return 0
	}
	if pos < cursor.InputSize && isIdentifierPart(cursor.Input[pos]) {
		return 0
	}
	return pos - cursor.Pos
}

type identifierMatch struct{}

func (m *identifierMatch) Match(cursor *parsly.Cursor) int {
	if cursor.Pos >= cursor.InputSize {
		return 0
	}
	if !isIdentifierStart(cursor.Input[cursor.Pos]) {
		return 0
	}
	pos := cursor.Pos + 1
	for pos < cursor.InputSize && isIdentifierPart(cursor.Input[pos]) {
		pos++
	}
	return pos - cursor.Pos
}

func isIdentifierStart(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_' || b == '\\' || b == '$' || b >= 0x80
}

func isIdentifierPart(b byte) bool {
	return isIdentifierStart(b) || (b >= '0' && b <= '9') || b == '-'
}
