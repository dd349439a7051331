package domain

// SignatureFrameTooLarge is the diagnostic message emitted when an
// oversized binary frame is rejected. The external health monitor counts
// occurrences of this message to detect a receiver stuck in a garbage
// stream, so the text must stay stable across releases.
const SignatureFrameTooLarge = "frame too large"
