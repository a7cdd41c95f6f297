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

package upstream

import liberr "github.com/nabbar/golib/errors"

const (
	ErrorUpstreamTimeout liberr.CodeError = iota + liberr.MinAvailable + 20
	ErrorUpstreamConnect
	ErrorLinkClosed
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = liberr.ExistInMapMessage(ErrorUpstreamTimeout)
	liberr.RegisterIdFctMessage(ErrorUpstreamTimeout, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrorUpstreamTimeout:
		return "timeout while connecting to upstream"
	case ErrorUpstreamConnect:
		return "cannot connect to upstream"
	case ErrorLinkClosed:
		return "upstream link is closed"
	}

	return liberr.NullMessage
}
