package resolve

import "strings"

// builtins are the names Python resolves without an import. References to
// them stay unresolved without a warning where noted.
var builtins = map[string]bool{}

func init() {
	for _, name := range strings.Fields(`
		object type int float complex bool str bytes bytearray memoryview
		list tuple dict set frozenset range slice property staticmethod
		classmethod super enumerate zip map filter reversed iter next len
		BaseException BaseExceptionGroup Exception ExceptionGroup
		ArithmeticError AssertionError AttributeError BlockingIOError
		BrokenPipeError BufferError ChildProcessError ConnectionAbortedError
		ConnectionError ConnectionRefusedError ConnectionResetError EOFError
		EnvironmentError FileExistsError FileNotFoundError FloatingPointError
		GeneratorExit IOError ImportError IndentationError IndexError
		InterruptedError IsADirectoryError KeyError KeyboardInterrupt
		LookupError MemoryError ModuleNotFoundError NameError
		NotADirectoryError NotImplementedError OSError OverflowError
		PermissionError ProcessLookupError RecursionError ReferenceError
		RuntimeError StopAsyncIteration StopIteration SyntaxError SystemError
		SystemExit TabError TimeoutError TypeError UnboundLocalError
		UnicodeDecodeError UnicodeEncodeError UnicodeError
		UnicodeTranslateError ValueError ZeroDivisionError
		Warning BytesWarning DeprecationWarning EncodingWarning FutureWarning
		ImportWarning PendingDeprecationWarning ResourceWarning RuntimeWarning
		SyntaxWarning UnicodeWarning UserWarning
	`) {
		builtins[name] = true
	}
}

// isBuiltin reports whether name is a Python builtin, optionally written
// as builtins.X or __builtin__.X.
func isBuiltin(name string) bool {
	for _, prefix := range []string{"builtins.", "__builtin__.", "exceptions."} {
		name = strings.TrimPrefix(name, prefix)
	}
	return builtins[name]
}
