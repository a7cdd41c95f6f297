/*
 * MIT License
 *
 * Copyright (c) 2023 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package socks

import liberr "github.com/nabbar/golib/errors"

const (
	ErrorSocksVersion liberr.CodeError = iota + liberr.MinAvailable + 30
	ErrorSocksTruncated
	ErrorSocksWrite
	ErrorSocksNoMethod
	ErrorSocksAuth
	ErrorSocksCommand
	ErrorSocksAddrType
	ErrorSocksRewrite
	ErrorSocksResolve
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = liberr.ExistInMapMessage(ErrorSocksVersion)
	liberr.RegisterIdFctMessage(ErrorSocksVersion, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrorSocksVersion:
		return "unsupported socks version '%d'"
	case ErrorSocksTruncated:
		return "truncated socks record"
	case ErrorSocksWrite:
		return "cannot write socks reply"
	case ErrorSocksNoMethod:
		return "no acceptable authentication method"
	case ErrorSocksAuth:
		return "authentication is not implemented"
	case ErrorSocksCommand:
		return "unsupported socks command '%d'"
	case ErrorSocksAddrType:
		return "unknown address type '%d'"
	case ErrorSocksRewrite:
		return "malformed port rewrite entry '%s'"
	case ErrorSocksResolve:
		return "cannot resolve pinned destination host"
	}

	return liberr.NullMessage
}
