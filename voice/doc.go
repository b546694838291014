// Package voice dispatches recognized speech to registered commands.
//
// A Service is constructed by the application root and handed to the parts
// of the program that register commands. Speech comes from a Recognizer;
// LineRecognizer reads transcripts from text input for terminals and tests.
package voice
